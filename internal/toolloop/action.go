package toolloop

import (
	"context"
	"errors"

	"github.com/embabel/goalrun/internal/action"
)

// SeedFunc builds the opening messages of a loop from the invoking action's
// resolved inputs.
type SeedFunc func(inv action.Invocation) []Message

// RunFunc adapts a tool loop into an action run function. The final model
// response completes the action; a max-iterations outcome fails it with an
// error matching ErrMaxIterations so the caller can tell it apart from a
// model or tool error.
func RunFunc(model ModelClient, tools Registry, cfg Config, seed SeedFunc) action.RunFunc {
	loop := New(model, tools, cfg)
	return func(ctx context.Context, inv action.Invocation) action.Outcome {
		res, err := loop.Run(ctx, seed(inv))
		if err != nil {
			if errors.Is(err, ErrMaxIterations) {
				return action.Fail(ErrMaxIterations)
			}
			return action.Fail(err)
		}
		return action.Complete(res.Final.Content)
	}
}
