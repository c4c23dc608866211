package action

import "github.com/embabel/goalrun/internal/blackboard"

// Outcome is the tagged result of one action invocation. The execution loop
// dispatches on the concrete type; there is no exception-style control flow.
type Outcome interface {
	outcome()
}

// Completed reports a successful invocation carrying the produced value.
type Completed struct {
	Value any
}

// ReplanRequested is a control-flow signal, not a failure: discard the
// current plan, apply Mutate (if set) to the blackboard, and re-plan from
// the mutated state. It consumes no retry budget.
type ReplanRequested struct {
	Reason string
	Mutate func(bb *blackboard.Blackboard)
}

// Awaiting suspends the run until an external value is supplied via Resume.
type Awaiting struct {
	// Request describes what is awaited (a prompt, a sub-result key).
	Request string
	// BindAs names the binding the supplied value lands under; empty binds
	// it as the default result.
	BindAs string
}

// Failed reports an invocation error, subject to the action's retry policy.
type Failed struct {
	Err error
}

func (Completed) outcome()       {}
func (ReplanRequested) outcome() {}
func (Awaiting) outcome()        {}
func (Failed) outcome()          {}

// Complete wraps a value in a Completed outcome.
func Complete(v any) Outcome { return Completed{Value: v} }

// Fail wraps an error in a Failed outcome.
func Fail(err error) Outcome { return Failed{Err: err} }
