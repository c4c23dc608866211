package agentfile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/embabel/goalrun/internal/action"
	"github.com/embabel/goalrun/internal/blackboard"
	"github.com/embabel/goalrun/internal/condition"
	"github.com/embabel/goalrun/internal/planner"
	"github.com/embabel/goalrun/internal/process"
	"github.com/embabel/goalrun/internal/toolloop"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Render fills {{name}} placeholders in a template from blackboard
// bindings. Unbound placeholders are left verbatim so the gap is visible in
// the transcript.
func Render(template string, bb *blackboard.Blackboard) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimSpace(strings.Trim(match, "{}"))
		if v, ok := bb.Get(name); ok {
			return fmt.Sprintf("%v", v)
		}
		return match
	})
}

// Build compiles a profile into a runnable agent. Every action drives the
// model through the tool loop with the given registry; per-action tool
// subsets narrow it.
func (p *Profile) Build(model toolloop.ModelClient, tools toolloop.Registry, stuck process.StuckHandler) (process.Agent, error) {
	cfg := p.loopConfig()

	actions := make([]action.Action, 0, len(p.Actions))
	for _, spec := range p.Actions {
		actions = append(actions, spec.build(model, tools, cfg))
	}

	goals := make([]action.Goal, 0, len(p.Goals))
	for _, g := range p.Goals {
		goals = append(goals, action.Goal{
			Name:        g.Name,
			Description: g.Description,
			Condition:   g.Condition,
		})
	}

	reg, err := action.NewRegistry(actions, goals)
	if err != nil {
		return process.Agent{}, err
	}

	ev := condition.BlackboardEvaluator{}
	var pln planner.Planner
	if p.Planner == "utility" {
		pln = planner.NewUtility(ev)
	} else {
		pln = planner.NewGOAP(ev)
	}

	return process.Agent{
		Name:      p.Name,
		Registry:  reg,
		Planner:   pln,
		Evaluator: ev,
		Stuck:     stuck,
	}, nil
}

func (p *Profile) loopConfig() toolloop.Config {
	cfg := toolloop.DefaultConfig()
	if p.Loop == nil {
		return cfg
	}
	if p.Loop.Mode != "" {
		cfg.Mode = toolloop.Mode(p.Loop.Mode)
	}
	if p.Loop.Executor != "" {
		cfg.Executor = toolloop.ExecutorType(p.Loop.Executor)
	}
	if p.Loop.PoolSize > 0 {
		cfg.PoolSize = p.Loop.PoolSize
	}
	if p.Loop.MaxIterations > 0 {
		cfg.MaxIterations = p.Loop.MaxIterations
	}
	cfg.PerToolTimeout = p.Loop.ToolTimeout.Std()
	cfg.BatchTimeout = p.Loop.BatchTimeout.Std()
	return cfg
}

func (spec ActionSpec) build(model toolloop.ModelClient, tools toolloop.Registry, cfg toolloop.Config) action.Action {
	subset := tools
	if len(spec.Tools) > 0 {
		subset = make(toolloop.Registry, len(spec.Tools))
		for _, name := range spec.Tools {
			if t, ok := tools[name]; ok {
				subset[name] = t
			}
		}
	}

	system := spec.System
	prompt := spec.Prompt
	seed := func(inv action.Invocation) []toolloop.Message {
		var msgs []toolloop.Message
		if system != "" {
			msgs = append(msgs, toolloop.Message{Role: toolloop.RoleSystem, Content: Render(system, inv.Blackboard)})
		}
		msgs = append(msgs, toolloop.Message{Role: toolloop.RoleUser, Content: Render(prompt, inv.Blackboard)})
		return msgs
	}

	retry := action.DefaultRetryPolicy()
	if spec.Retry != nil {
		retry = action.RetryPolicy{MaxAttempts: spec.Retry.MaxAttempts, Backoff: spec.Retry.Backoff.Std()}
	}

	return action.Action{
		Name:        spec.Name,
		Description: spec.Description,
		Cost:        spec.Cost,
		ClearsState: spec.ClearsState,
		Retry:       retry,
		Pre:         spec.Pre,
		Effects:     spec.Effects,
		Recovery:    spec.Recovery,
		Run:         toolloop.RunFunc(model, subset, cfg, seed),
	}
}
