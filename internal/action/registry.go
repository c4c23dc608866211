package action

import (
	"fmt"
	"sort"
)

// Registry is the closed, immutable set of action and goal descriptors an
// agent runs on. It is produced once at registration time; the planning core
// depends only on this list, never on how the descriptors were derived.
type Registry struct {
	actions map[string]Action
	goals   []Goal
	names   []string // sorted, for deterministic iteration
}

// NewRegistry validates and freezes the descriptor set.
func NewRegistry(actions []Action, goals []Goal) (*Registry, error) {
	r := &Registry{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		if a.Name == "" {
			return nil, fmt.Errorf("action with empty name")
		}
		if _, dup := r.actions[a.Name]; dup {
			return nil, fmt.Errorf("duplicate action name %q", a.Name)
		}
		if a.Run == nil {
			return nil, fmt.Errorf("action %q has no run function", a.Name)
		}
		if a.Retry.MaxAttempts == 0 {
			a.Retry = DefaultRetryPolicy()
		}
		if a.Retry.MaxAttempts < 1 {
			return nil, fmt.Errorf("action %q: MaxAttempts must be >= 1", a.Name)
		}
		r.actions[a.Name] = a
		r.names = append(r.names, a.Name)
	}
	for _, a := range actions {
		if a.Recovery != "" {
			if _, ok := r.actions[a.Recovery]; !ok {
				return nil, fmt.Errorf("action %q: recovery action %q not registered", a.Name, a.Recovery)
			}
		}
	}
	seen := make(map[string]bool, len(goals))
	for _, g := range goals {
		if g.Name == "" {
			return nil, fmt.Errorf("goal with empty name")
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("duplicate goal name %q", g.Name)
		}
		seen[g.Name] = true
	}
	sort.Strings(r.names)
	r.goals = append([]Goal(nil), goals...)
	return r, nil
}

// Action returns the named action.
func (r *Registry) Action(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Actions returns all actions in deterministic (lexical) order.
func (r *Registry) Actions() []Action {
	out := make([]Action, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.actions[n])
	}
	return out
}

// Goals returns the registered goals in registration order.
func (r *Registry) Goals() []Goal {
	return append([]Goal(nil), r.goals...)
}
