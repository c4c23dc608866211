package condition

import "github.com/embabel/goalrun/internal/blackboard"

// Fact is a boolean statement extracted from a blackboard object.
type Fact struct {
	Name  string
	Holds bool
}

// Extractor derives zero or more facts from a single blackboard object.
type Extractor func(obj any) []Fact

// Rule derives a named condition from a logical expression over fact names.
type Rule struct {
	Name string
	When Expr
}

// RuleEvaluator is the pluggable rule-engine backend: conditions are derived
// from declarative rules plus facts extracted from blackboard objects. A
// condition with no rule, or a rule referencing a fact no extractor
// produced, evaluates to Unknown.
type RuleEvaluator struct {
	rules      map[string]Rule
	extractors []Extractor
}

// NewRuleEvaluator builds an evaluator over a closed rule set.
func NewRuleEvaluator(rules []Rule, extractors ...Extractor) *RuleEvaluator {
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		m[r.Name] = r
	}
	return &RuleEvaluator{rules: m, extractors: extractors}
}

func (r *RuleEvaluator) Evaluate(name string, bb *blackboard.Blackboard) Value {
	rule, ok := r.rules[name]
	if !ok {
		return Unknown
	}
	facts := r.extractFacts(bb)
	return rule.When.Eval(factLookup(facts), bb)
}

func (r *RuleEvaluator) extractFacts(bb *blackboard.Blackboard) map[string]bool {
	facts := make(map[string]bool)
	for _, obj := range bb.Objects() {
		for _, ex := range r.extractors {
			for _, f := range ex(obj) {
				facts[f.Name] = f.Holds
			}
		}
	}
	return facts
}

// factLookup resolves rule expression leaves against an extracted fact set.
type factLookup map[string]bool

func (f factLookup) Evaluate(name string, _ *blackboard.Blackboard) Value {
	holds, ok := f[name]
	if !ok {
		return Unknown
	}
	return FromBool(holds)
}
