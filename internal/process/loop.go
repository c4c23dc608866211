package process

import (
	"context"
	"errors"
	"time"

	"github.com/embabel/goalrun/internal/action"
	"github.com/embabel/goalrun/internal/condition"
	"github.com/embabel/goalrun/internal/planner"
)

// Run drives the execution loop until the run reaches a terminal status or
// suspends (WAITING, PAUSED). It returns the run's terminal error for
// FAILED, and nil otherwise; the status carries the rest of the story.
//
// A WAITING process must be Resumed before Run is called again.
func (p *Process) Run(ctx context.Context) error {
	p.mu.Lock()
	switch {
	case p.status.Terminal():
		s := p.status
		p.mu.Unlock()
		return &StateError{ProcessID: p.id, Status: s, Op: "run"}
	case p.status == StatusWaiting:
		p.mu.Unlock()
		return &StateError{ProcessID: p.id, Status: StatusWaiting, Op: "run"}
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	p.setStatus(StatusRunning)

	for {
		if p.isKilled() || runCtx.Err() != nil {
			p.setStatus(StatusKilled)
			return nil
		}
		if p.Status() == StatusPaused {
			return nil
		}

		// Goal check precedes planning: satisfaction is purely a function
		// of current blackboard and condition state.
		if _, ok := p.satisfiedGoal(); ok {
			p.discardPlan()
			p.setStatus(StatusCompleted)
			return nil
		}

		next, fresh, err := p.nextAction(runCtx)
		if err != nil {
			if errors.Is(err, planner.ErrNoPlanFound) {
				cont, failErr := p.handleStuck(runCtx)
				if cont {
					continue
				}
				return failErr
			}
			p.fail(err)
			return err
		}

		// Re-verify preconditions at execution time; a stale plan is
		// discarded and planning retried from the current state.
		if next.PreconditionsHold(p.agent.Evaluator, p.bb) != condition.True {
			if fresh {
				cont, failErr := p.handleStuck(runCtx)
				if cont {
					continue
				}
				return failErr
			}
			p.discardPlan()
			continue
		}

		outcome, attempts := p.invokeWithRetry(runCtx, next)

		switch o := outcome.(type) {
		case action.Completed:
			p.bindCompletion(next, o.Value)
			p.appendHistory(HistoryEntry{
				Action: next.Name, At: time.Now(), Outcome: "completed", Attempts: attempts,
			})

		case action.ReplanRequested:
			// A deliberate control-flow signal, not a failure: apply the
			// mutation, discard the plan, stay RUNNING.
			if o.Mutate != nil {
				o.Mutate(p.bb)
			}
			p.discardPlan()
			p.appendHistory(HistoryEntry{
				Action: next.Name, At: time.Now(), Outcome: "replan", Attempts: attempts,
			})

		case action.Awaiting:
			p.mu.Lock()
			p.pending = &pendingAwait{request: o.Request, bindAs: o.BindAs}
			p.mu.Unlock()
			p.appendHistory(HistoryEntry{
				Action: next.Name, At: time.Now(), Outcome: "awaiting", Attempts: attempts,
			})
			p.setStatus(StatusWaiting)
			return nil

		case action.Failed:
			if p.isKilled() || runCtx.Err() != nil {
				p.setStatus(StatusKilled)
				return nil
			}
			p.appendHistory(HistoryEntry{
				Action: next.Name, At: time.Now(), Outcome: "failed",
				Attempts: attempts, Error: o.Err.Error(),
			})
			if next.Recovery != "" {
				if p.runRecovery(runCtx, next.Recovery) {
					p.discardPlan()
					continue
				}
			}
			err := &ActionFailedError{Action: next.Name, Attempts: attempts, Err: o.Err}
			p.fail(err)
			return err
		}
	}
}

// nextAction returns the next planned action, planning afresh when no plan
// is in progress. fresh reports whether the action comes from a plan
// computed this cycle.
func (p *Process) nextAction(ctx context.Context) (action.Action, bool, error) {
	p.mu.Lock()
	havePlan := p.plan != nil && p.planIdx < len(p.plan.Actions)
	p.mu.Unlock()

	if !havePlan {
		plan, err := p.agent.Planner.Plan(ctx, p.bb, p.agent.Registry.Goals(), p.agent.Registry.Actions())
		if err != nil {
			return action.Action{}, false, err
		}
		if len(plan.Actions) == 0 {
			// The planner considers a goal reachable with no work; treat
			// as no progress possible to avoid spinning.
			return action.Action{}, false, planner.ErrNoPlanFound
		}
		p.mu.Lock()
		p.plan = plan
		p.planIdx = 0
		p.mu.Unlock()
		a := plan.Actions[0]
		p.advancePlan()
		return a, true, nil
	}

	p.mu.Lock()
	a := p.plan.Actions[p.planIdx]
	p.mu.Unlock()
	p.advancePlan()
	return a, false, nil
}

func (p *Process) advancePlan() {
	p.mu.Lock()
	p.planIdx++
	p.mu.Unlock()
}

func (p *Process) discardPlan() {
	p.mu.Lock()
	p.plan = nil
	p.planIdx = 0
	p.mu.Unlock()
}

// invokeWithRetry executes one action under its retry policy. Inputs are
// re-resolved from the blackboard on every attempt; nothing is cached
// across state clears. Backoff applies only between attempts, and kill wins
// over an in-progress backoff.
func (p *Process) invokeWithRetry(ctx context.Context, act action.Action) (action.Outcome, int) {
	for attempt := 1; ; attempt++ {
		var outcome action.Outcome
		inv, err := act.ResolveInputs(p.bb)
		if err != nil {
			outcome = action.Fail(err)
		} else {
			outcome = act.Run(ctx, inv)
		}

		failed, isFailure := outcome.(action.Failed)
		if !isFailure {
			return outcome, attempt
		}
		if attempt >= act.Retry.MaxAttempts {
			return outcome, attempt
		}
		// Logged, not surfaced, until attempts are exhausted.
		if p.obs != nil {
			p.obs.OnRetry(p, act.Name, attempt, failed.Err)
		}
		if act.Retry.Backoff > 0 {
			select {
			case <-ctx.Done():
				return action.Fail(ctx.Err()), attempt
			case <-time.After(act.Retry.Backoff):
			}
		}
	}
}

// bindCompletion writes an action's result back to the blackboard. A state
// output clears all default bindings first, so the new output plus the
// protected bindings are the only ones visible to the next planning cycle.
func (p *Process) bindCompletion(act action.Action, value any) {
	if act.ClearsDefaultBindings() {
		p.bb.ClearDefaultBindings()
	}
	if value != nil {
		p.bb.BindResult(value)
	}
	for _, effect := range act.Effects {
		p.bb.Set(effect, true)
	}
}

func (p *Process) satisfiedGoal() (action.Goal, bool) {
	for _, g := range p.agent.Registry.Goals() {
		if g.Satisfied(p.agent.Evaluator, p.bb) == condition.True {
			return g, true
		}
	}
	return action.Goal{}, false
}

func (p *Process) firstUnsatisfiedGoal() action.Goal {
	for _, g := range p.agent.Registry.Goals() {
		if g.Satisfied(p.agent.Evaluator, p.bb) != condition.True {
			return g
		}
	}
	return action.Goal{}
}

// handleStuck routes a no-plan-found result through the stuck policy.
// It returns cont=true when the loop should retry planning.
func (p *Process) handleStuck(ctx context.Context) (cont bool, err error) {
	d := Diagnosis{Goal: p.firstUnsatisfiedGoal(), Snapshot: p.bb.Snapshot()}
	p.mu.Lock()
	p.diagnosis = &d
	p.mu.Unlock()
	p.setStatus(StatusStuck)

	if p.agent.Stuck == nil {
		err := &StuckError{Goal: d.Goal.Name}
		p.fail(err)
		return false, err
	}

	decision := p.agent.Stuck(ctx, d, p.bb)
	switch decision.Kind {
	case StuckReplan:
		p.discardPlan()
		p.setStatus(StatusRunning)
		return true, nil

	case StuckCorrect:
		corrective, ok := p.agent.Registry.Action(decision.CorrectiveAction)
		if !ok {
			err := &StuckError{Goal: d.Goal.Name}
			p.fail(err)
			return false, err
		}
		outcome, attempts := p.invokeWithRetry(ctx, corrective)
		if completed, ok := outcome.(action.Completed); ok {
			p.bindCompletion(corrective, completed.Value)
			p.appendHistory(HistoryEntry{
				Action: corrective.Name, At: time.Now(), Outcome: "recovered", Attempts: attempts,
			})
			p.discardPlan()
			p.setStatus(StatusRunning)
			return true, nil
		}
		err := &StuckError{Goal: d.Goal.Name}
		p.fail(err)
		return false, err

	default:
		err := &StuckError{Goal: d.Goal.Name}
		p.fail(err)
		return false, err
	}
}

// runRecovery executes an action's corrective action once. It reports
// whether the run may continue.
func (p *Process) runRecovery(ctx context.Context, name string) bool {
	recovery, ok := p.agent.Registry.Action(name)
	if !ok {
		return false
	}
	outcome, attempts := p.invokeWithRetry(ctx, recovery)
	completed, ok := outcome.(action.Completed)
	if !ok {
		return false
	}
	p.bindCompletion(recovery, completed.Value)
	p.appendHistory(HistoryEntry{
		Action: recovery.Name, At: time.Now(), Outcome: "recovered", Attempts: attempts,
	})
	return true
}

func (p *Process) fail(err error) {
	p.mu.Lock()
	p.err = err
	if p.diagnosis == nil {
		p.diagnosis = &Diagnosis{Goal: action.Goal{}, Snapshot: p.bb.Snapshot()}
	}
	p.mu.Unlock()
	p.setStatus(StatusFailed)
}
