// Package planner computes action sequences that satisfy a goal. Two
// interchangeable strategies share one contract: search-based (GOAP) planning
// of whole sequences, and utility-based per-step selection. NoPlanFound is a
// normal result, not an error condition; it routes to the stuck policy.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/embabel/goalrun/internal/action"
	"github.com/embabel/goalrun/internal/blackboard"
)

// ErrNoPlanFound reports that no action sequence can currently reach any
// goal. It triggers the stuck policy rather than failing the run.
var ErrNoPlanFound = errors.New("no plan found")

// Plan is an ordered, finite action sequence targeting one goal. Plans are
// produced fresh on every planning cycle and are never reused across
// blackboard mutations.
type Plan struct {
	Goal    action.Goal
	Actions []action.Action
	Cost    float64
}

// ActionNames returns the plan's action names in execution order.
func (p *Plan) ActionNames() []string {
	names := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		names[i] = a.Name
	}
	return names
}

func (p *Plan) String() string {
	return fmt.Sprintf("plan{goal=%s cost=%.2f actions=%v}", p.Goal.Name, p.Cost, p.ActionNames())
}

// Planner produces a plan over the current world state, the goal set, and
// the available actions.
type Planner interface {
	Plan(ctx context.Context, bb *blackboard.Blackboard, goals []action.Goal, actions []action.Action) (*Plan, error)
}
