// Package action defines the immutable descriptors the planning core runs
// on: actions (units of work with declared inputs, effects, cost and retry
// policy), goals, and the closed registry an agent is built from.
package action

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/embabel/goalrun/internal/blackboard"
	"github.com/embabel/goalrun/internal/condition"
)

// Input describes one required input binding: either a named binding or a
// type-based lookup against the blackboard.
type Input struct {
	// Name of the binding to resolve. Empty for type-based lookups.
	Name string
	// Type the resolved value must be assignable to. Required for
	// type-based lookups; optional (checked when set) for named ones.
	Type reflect.Type
	// LastResult qualifies a type-based lookup: the most recently produced
	// value on the blackboard must itself be of Type.
	LastResult bool
}

func (in Input) String() string {
	if in.Name != "" {
		return in.Name
	}
	if in.Type != nil {
		return "type:" + in.Type.String()
	}
	return "(empty)"
}

// RetryPolicy governs per-action retry. MaxAttempts=1 never retries; Backoff
// is applied between attempts, so only from attempt 2 onward.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy is a single attempt with no backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// CostFunc computes an action's dynamic cost from current blackboard
// contents.
type CostFunc func(bb *blackboard.Blackboard) float64

// Invocation carries the resolved inputs of one action execution.
type Invocation struct {
	Blackboard *blackboard.Blackboard
	// Inputs maps each required input's String() key to its resolved value.
	Inputs map[string]any
}

// Input returns the resolved value for a named input.
func (inv Invocation) Input(name string) any {
	return inv.Inputs[name]
}

// RunFunc performs the action's work and reports a tagged outcome. Control
// flow signals (replan, await) travel in the outcome, never as errors.
type RunFunc func(ctx context.Context, inv Invocation) Outcome

// Action is the immutable description of a unit of work.
type Action struct {
	Name        string
	Description string

	Inputs []Input
	// Output is the declared result type.
	Output reflect.Type
	// OutputIsState marks the output type as a state type; successful
	// completion then clears all default bindings before the result binds.
	OutputIsState bool
	// ClearsState forces the state-clearing behavior regardless of the
	// output type.
	ClearsState bool

	// Cost is the static path cost; CostFn, when set, overrides it.
	Cost   float64
	CostFn CostFunc

	Retry RetryPolicy

	// Pre names conditions that must hold before the action may run.
	Pre []string
	// Effects names conditions the action establishes on success, used by
	// the search planner to chain actions.
	Effects []string

	// Recovery optionally names an action to execute once after this
	// action's retries are exhausted, before the run fails.
	Recovery string

	Run RunFunc
}

// EffectiveCost resolves the action's cost against the blackboard.
func (a Action) EffectiveCost(bb *blackboard.Blackboard) float64 {
	if a.CostFn != nil {
		return a.CostFn(bb)
	}
	return a.Cost
}

// ClearsDefaultBindings reports whether completing this action triggers a
// state clear.
func (a Action) ClearsDefaultBindings() bool {
	return a.OutputIsState || a.ClearsState
}

// PreconditionsHold evaluates every precondition and input requirement
// against the current blackboard. Unknown is conservative: it blocks the
// action exactly like False does, but the two are distinguishable to the
// caller.
func (a Action) PreconditionsHold(ev condition.Evaluator, bb *blackboard.Blackboard) condition.Value {
	result := condition.True
	for _, name := range a.Pre {
		switch ev.Evaluate(name, bb) {
		case condition.False:
			return condition.False
		case condition.Unknown:
			result = condition.Unknown
		}
	}
	for _, in := range a.Inputs {
		if !inputSatisfied(in, bb) {
			return condition.False
		}
	}
	return result
}

func inputSatisfied(in Input, bb *blackboard.Blackboard) bool {
	if in.Name != "" {
		v, ok := bb.Get(in.Name)
		if !ok {
			return false
		}
		return in.Type == nil || assignableTo(v, in.Type)
	}
	if in.LastResult {
		last, ok := bb.Last()
		return ok && assignableTo(last, in.Type)
	}
	return bb.HasType(in.Type)
}

// ResolveInputs resolves every required input from the blackboard at
// invocation time. Components must never cache resolutions across state
// clears, so this runs immediately before each attempt.
func (a Action) ResolveInputs(bb *blackboard.Blackboard) (Invocation, error) {
	inv := Invocation{Blackboard: bb, Inputs: make(map[string]any, len(a.Inputs))}
	for _, in := range a.Inputs {
		v, err := resolveInput(in, bb)
		if err != nil {
			return Invocation{}, fmt.Errorf("action %s: %w", a.Name, err)
		}
		inv.Inputs[in.String()] = v
	}
	return inv, nil
}

func resolveInput(in Input, bb *blackboard.Blackboard) (any, error) {
	if in.Name != "" {
		v, ok := bb.Get(in.Name)
		if !ok {
			return nil, fmt.Errorf("input binding %q not present", in.Name)
		}
		if in.Type != nil && !assignableTo(v, in.Type) {
			return nil, fmt.Errorf("input binding %q is %T, want %s", in.Name, v, in.Type)
		}
		return v, nil
	}
	if in.Type == nil {
		return nil, fmt.Errorf("input has neither name nor type")
	}
	if in.LastResult {
		last, ok := bb.Last()
		if !ok || !assignableTo(last, in.Type) {
			return nil, fmt.Errorf("last result is not %s", in.Type)
		}
		return last, nil
	}
	v, ok := bb.GetByType(in.Type)
	if !ok {
		return nil, fmt.Errorf("no value of type %s present", in.Type)
	}
	return v, nil
}

func assignableTo(v any, target reflect.Type) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	if target.Kind() == reflect.Interface {
		return t.Implements(target)
	}
	return t.AssignableTo(target)
}
