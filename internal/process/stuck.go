package process

import (
	"context"

	"github.com/embabel/goalrun/internal/blackboard"
)

// StuckKind is what the stuck handler decided.
type StuckKind string

const (
	// StuckReplan retries planning, typically after the handler mutated
	// the blackboard.
	StuckReplan StuckKind = "replan"
	// StuckFail terminates the run.
	StuckFail StuckKind = "fail"
	// StuckCorrect executes a named corrective action once, then replans.
	StuckCorrect StuckKind = "correct"
)

// StuckDecision is the handler's verdict.
type StuckDecision struct {
	Kind StuckKind
	// CorrectiveAction names the registered action to run for StuckCorrect.
	CorrectiveAction string
}

// StuckHandler is invoked only when the planner reports no plan. It may
// mutate the blackboard before asking for a replan. A nil handler defaults
// to failing the run.
type StuckHandler func(ctx context.Context, d Diagnosis, bb *blackboard.Blackboard) StuckDecision

// Replan is a convenience decision.
func Replan() StuckDecision { return StuckDecision{Kind: StuckReplan} }

// Fail is a convenience decision.
func Fail() StuckDecision { return StuckDecision{Kind: StuckFail} }

// Correct asks for a one-shot corrective action.
func Correct(actionName string) StuckDecision {
	return StuckDecision{Kind: StuckCorrect, CorrectiveAction: actionName}
}
