// Package condition implements tri-state condition evaluation against the
// blackboard. Conditions are named boolean facts or logical expressions over
// facts; evaluation returns True, False or Unknown, and Unknown always
// propagates conservatively rather than coercing to False.
package condition

import (
	"github.com/embabel/goalrun/internal/blackboard"
)

// Value is the tri-state result of evaluating a condition.
type Value string

const (
	True    Value = "TRUE"
	False   Value = "FALSE"
	Unknown Value = "UNKNOWN"
)

// FromBool converts a definitive boolean to a Value.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Evaluator evaluates a named condition against the blackboard.
type Evaluator interface {
	Evaluate(name string, bb *blackboard.Blackboard) Value
}

// BlackboardEvaluator is the default evaluator: a condition holds when a
// binding of the same name carries a boolean (or Value) on the blackboard.
// An absent or non-boolean binding is Unknown.
type BlackboardEvaluator struct{}

func (BlackboardEvaluator) Evaluate(name string, bb *blackboard.Blackboard) Value {
	v, ok := bb.Get(name)
	if !ok {
		return Unknown
	}
	switch t := v.(type) {
	case bool:
		return FromBool(t)
	case Value:
		return t
	default:
		return Unknown
	}
}

// FuncEvaluator adapts a plain function into an Evaluator.
type FuncEvaluator func(name string, bb *blackboard.Blackboard) Value

func (f FuncEvaluator) Evaluate(name string, bb *blackboard.Blackboard) Value {
	return f(name, bb)
}

// Chain tries each evaluator in order and returns the first definitive
// result. All-Unknown stays Unknown.
type Chain []Evaluator

func (c Chain) Evaluate(name string, bb *blackboard.Blackboard) Value {
	for _, ev := range c {
		if v := ev.Evaluate(name, bb); v != Unknown {
			return v
		}
	}
	return Unknown
}
