package condition

import "github.com/embabel/goalrun/internal/blackboard"

// Expr is a logical expression over named conditions. Composite expressions
// may short-circuit on a definitive False (And) or True (Or), but must never
// report a definitive result while an Unknown branch could still flip it.
type Expr interface {
	Eval(ev Evaluator, bb *blackboard.Blackboard) Value
}

// Named references a leaf condition by name.
type Named string

func (n Named) Eval(ev Evaluator, bb *blackboard.Blackboard) Value {
	return ev.Evaluate(string(n), bb)
}

type andExpr []Expr

// And holds when every operand holds. A single False decides the result; an
// Unknown operand with no False makes the whole expression Unknown.
func And(exprs ...Expr) Expr { return andExpr(exprs) }

func (a andExpr) Eval(ev Evaluator, bb *blackboard.Blackboard) Value {
	unknown := false
	for _, e := range a {
		switch e.Eval(ev, bb) {
		case False:
			return False
		case Unknown:
			unknown = true
		}
	}
	if unknown {
		return Unknown
	}
	return True
}

type orExpr []Expr

// Or holds when any operand holds. A single True decides the result; an
// Unknown operand with no True makes the whole expression Unknown.
func Or(exprs ...Expr) Expr { return orExpr(exprs) }

func (o orExpr) Eval(ev Evaluator, bb *blackboard.Blackboard) Value {
	unknown := false
	for _, e := range o {
		switch e.Eval(ev, bb) {
		case True:
			return True
		case Unknown:
			unknown = true
		}
	}
	if unknown {
		return Unknown
	}
	return False
}

type notExpr struct{ inner Expr }

// Not negates a definitive result; Unknown stays Unknown.
func Not(e Expr) Expr { return notExpr{inner: e} }

func (n notExpr) Eval(ev Evaluator, bb *blackboard.Blackboard) Value {
	switch n.inner.Eval(ev, bb) {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}
