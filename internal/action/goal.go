package action

import (
	"reflect"

	"github.com/embabel/goalrun/internal/blackboard"
	"github.com/embabel/goalrun/internal/condition"
)

// Goal is a target condition over the blackboard. Satisfaction is purely a
// function of current blackboard and condition state, never of execution
// history.
type Goal struct {
	Name        string
	Description string

	// OutputType, when set, satisfies the goal once a value assignable to
	// it exists on the blackboard.
	OutputType reflect.Type
	// Condition, when set, satisfies the goal once the named condition
	// evaluates True.
	Condition string
}

// Satisfied evaluates the goal's satisfaction test. A goal with both tests
// set requires both; a goal with neither is never satisfied.
func (g Goal) Satisfied(ev condition.Evaluator, bb *blackboard.Blackboard) condition.Value {
	if g.OutputType == nil && g.Condition == "" {
		return condition.False
	}
	result := condition.True
	if g.OutputType != nil {
		if !bb.HasType(g.OutputType) {
			return condition.False
		}
	}
	if g.Condition != "" {
		switch ev.Evaluate(g.Condition, bb) {
		case condition.False:
			return condition.False
		case condition.Unknown:
			result = condition.Unknown
		}
	}
	return result
}
