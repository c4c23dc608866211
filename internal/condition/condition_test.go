package condition

import (
	"testing"

	"github.com/embabel/goalrun/internal/blackboard"
)

func TestBlackboardEvaluator(t *testing.T) {
	bb := blackboard.New()
	bb.Set("ready", true)
	bb.Set("blocked", false)
	bb.Set("weird", 42)

	ev := BlackboardEvaluator{}

	tests := []struct {
		name string
		want Value
	}{
		{"ready", True},
		{"blocked", False},
		{"missing", Unknown},
		{"weird", Unknown},
	}
	for _, tt := range tests {
		if got := ev.Evaluate(tt.name, bb); got != tt.want {
			t.Errorf("Evaluate(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestUnknownPropagation(t *testing.T) {
	bb := blackboard.New()
	bb.Set("a", true)
	bb.Set("b", true)
	bb.Set("f", false)
	ev := BlackboardEvaluator{}

	tests := []struct {
		name string
		expr Expr
		want Value
	}{
		// AND with one unknown leaf and otherwise-true leaves is unknown, not true.
		{"and unknown", And(Named("a"), Named("b"), Named("u")), Unknown},
		{"and false wins", And(Named("a"), Named("u"), Named("f")), False},
		{"and all true", And(Named("a"), Named("b")), True},
		// OR with one unknown and no true leaves is unknown, not false.
		{"or unknown", Or(Named("f"), Named("u")), Unknown},
		{"or true wins", Or(Named("u"), Named("a")), True},
		{"or all false", Or(Named("f")), False},
		{"not unknown", Not(Named("u")), Unknown},
		{"not true", Not(Named("a")), False},
		{"nested", And(Named("a"), Or(Named("f"), Named("u"))), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.Eval(ev, bb); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChain(t *testing.T) {
	bb := blackboard.New()
	fallback := FuncEvaluator(func(name string, _ *blackboard.Blackboard) Value {
		if name == "derived" {
			return True
		}
		return Unknown
	})
	ch := Chain{BlackboardEvaluator{}, fallback}

	if got := ch.Evaluate("derived", bb); got != True {
		t.Errorf("chain fallback: got %v", got)
	}
	if got := ch.Evaluate("nope", bb); got != Unknown {
		t.Errorf("chain miss: got %v", got)
	}

	// A definitive answer earlier in the chain wins.
	bb.Set("derived", false)
	if got := ch.Evaluate("derived", bb); got != False {
		t.Errorf("chain precedence: got %v", got)
	}
}

type order struct {
	Total   int
	Shipped bool
}

func TestRuleEvaluator(t *testing.T) {
	extract := func(obj any) []Fact {
		o, ok := obj.(order)
		if !ok {
			return nil
		}
		return []Fact{
			{Name: "order.large", Holds: o.Total > 100},
			{Name: "order.shipped", Holds: o.Shipped},
		}
	}
	ev := NewRuleEvaluator([]Rule{
		{Name: "needsReview", When: And(Named("order.large"), Not(Named("order.shipped")))},
		{Name: "needsAudit", When: And(Named("order.large"), Named("order.flagged"))},
	}, extract)

	bb := blackboard.New()
	if got := ev.Evaluate("needsReview", bb); got != Unknown {
		t.Errorf("no facts: got %v, want Unknown", got)
	}

	bb.AddObject(order{Total: 500})
	if got := ev.Evaluate("needsReview", bb); got != True {
		t.Errorf("got %v, want True", got)
	}
	// order.flagged is never extracted, so the rule cannot be definitive.
	if got := ev.Evaluate("needsAudit", bb); got != Unknown {
		t.Errorf("got %v, want Unknown", got)
	}
	if got := ev.Evaluate("noSuchRule", bb); got != Unknown {
		t.Errorf("got %v, want Unknown", got)
	}
}
