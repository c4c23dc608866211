package planner

import (
	"context"

	"github.com/embabel/goalrun/internal/action"
	"github.com/embabel/goalrun/internal/blackboard"
	"github.com/embabel/goalrun/internal/condition"
)

// Utility is the score-based strategy: at each execution step it scores
// every action whose preconditions currently hold and selects the single
// best-scoring one, effectively re-planning every step. Plans it returns are
// always one action long.
type Utility struct {
	ev condition.Evaluator
	// Score ranks a candidate; higher wins. Defaults to negated effective
	// cost, so cheaper actions win.
	score func(a action.Action, bb *blackboard.Blackboard) float64
}

// NewUtility builds a utility planner with the default cost-derived score.
func NewUtility(ev condition.Evaluator) *Utility {
	return &Utility{ev: ev}
}

// NewUtilityWithScore builds a utility planner with a custom score function.
func NewUtilityWithScore(ev condition.Evaluator, score func(action.Action, *blackboard.Blackboard) float64) *Utility {
	return &Utility{ev: ev, score: score}
}

func (u *Utility) Plan(ctx context.Context, bb *blackboard.Blackboard, goals []action.Goal, actions []action.Action) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	goal, ok := firstUnsatisfied(u.ev, bb, goals)
	if !ok {
		return nil, ErrNoPlanFound
	}

	var best *action.Action
	var bestScore float64
	for i := range actions {
		a := actions[i]
		// Unknown blocks selection exactly like False.
		if a.PreconditionsHold(u.ev, bb) != condition.True {
			continue
		}
		s := u.scoreOf(a, bb)
		// Ties break on lexical action name so identical inputs always
		// select the same action.
		if best == nil || s > bestScore || (s == bestScore && a.Name < best.Name) {
			best = &actions[i]
			bestScore = s
		}
	}
	if best == nil {
		return nil, ErrNoPlanFound
	}
	return &Plan{Goal: goal, Actions: []action.Action{*best}, Cost: best.EffectiveCost(bb)}, nil
}

func (u *Utility) scoreOf(a action.Action, bb *blackboard.Blackboard) float64 {
	if u.score != nil {
		return u.score(a, bb)
	}
	return -a.EffectiveCost(bb)
}

func firstUnsatisfied(ev condition.Evaluator, bb *blackboard.Blackboard, goals []action.Goal) (action.Goal, bool) {
	for _, g := range goals {
		if g.Satisfied(ev, bb) != condition.True {
			return g, true
		}
	}
	return action.Goal{}, false
}
