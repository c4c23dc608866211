// Package agentfile loads declarative agent profiles from YAML. A profile
// names the agent's goals, its actions with their planning metadata, and
// the tool-loop settings; Build compiles it into a runnable agent whose
// actions drive a model through the tool loop.
package agentfile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the top-level agent YAML document.
type Profile struct {
	Version string `yaml:"version"`
	Name    string `yaml:"name"`
	// Planner selects the strategy for the whole run: "goap" or "utility".
	Planner string       `yaml:"planner"`
	Goals   []GoalSpec   `yaml:"goals"`
	Actions []ActionSpec `yaml:"actions"`
	Loop    *LoopSpec    `yaml:"loop,omitempty"`
	Servers []ServerSpec `yaml:"mcp_servers,omitempty"`
}

// GoalSpec declares one goal.
type GoalSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Condition   string `yaml:"condition"`
}

// ActionSpec declares one model-backed action.
type ActionSpec struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Cost        float64    `yaml:"cost,omitempty"`
	Pre         []string   `yaml:"pre,omitempty"`
	Effects     []string   `yaml:"effects,omitempty"`
	ClearsState bool       `yaml:"clears_state,omitempty"`
	Retry       *RetrySpec `yaml:"retry,omitempty"`
	Recovery    string     `yaml:"recovery,omitempty"`

	// System and Prompt seed the tool loop; {{name}} placeholders are
	// filled from blackboard bindings at invocation time.
	System string `yaml:"system,omitempty"`
	Prompt string `yaml:"prompt"`
	// Tools restricts the action to a subset of the registry. Empty means
	// every registered tool.
	Tools []string `yaml:"tools,omitempty"`
}

// RetrySpec declares an action's retry policy.
type RetrySpec struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Backoff     Duration `yaml:"backoff,omitempty"`
}

// LoopSpec declares tool-loop settings shared by all actions.
type LoopSpec struct {
	Mode          string   `yaml:"mode,omitempty"`     // "sequential" or "parallel"
	Executor      string   `yaml:"executor,omitempty"` // "bounded-pool", "unbounded", "fixed-size"
	PoolSize      int      `yaml:"pool_size,omitempty"`
	MaxIterations int      `yaml:"max_iterations,omitempty"`
	ToolTimeout   Duration `yaml:"tool_timeout,omitempty"`
	BatchTimeout  Duration `yaml:"batch_timeout,omitempty"`
}

// ServerSpec declares an external MCP server to launch and adopt tools from.
type ServerSpec struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

// Duration wraps time.Duration with YAML string parsing ("30s", "2m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads and validates a profile from a YAML file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a profile from YAML bytes.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate performs strict validation on the profile.
func (p *Profile) Validate() error {
	if p.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", p.Version)
	}
	if p.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	switch p.Planner {
	case "", "goap", "utility":
	default:
		return fmt.Errorf("unknown planner %q (expected: goap or utility)", p.Planner)
	}
	if len(p.Goals) == 0 {
		return fmt.Errorf("agent %q: no goals defined", p.Name)
	}
	for _, g := range p.Goals {
		if g.Name == "" {
			return fmt.Errorf("agent %q: goal with empty name", p.Name)
		}
		if g.Condition == "" {
			return fmt.Errorf("goal %q: condition is required", g.Name)
		}
	}
	if len(p.Actions) == 0 {
		return fmt.Errorf("agent %q: no actions defined", p.Name)
	}
	names := make(map[string]bool, len(p.Actions))
	for _, a := range p.Actions {
		if a.Name == "" {
			return fmt.Errorf("agent %q: action with empty name", p.Name)
		}
		if names[a.Name] {
			return fmt.Errorf("duplicate action name %q", a.Name)
		}
		names[a.Name] = true
		if a.Prompt == "" {
			return fmt.Errorf("action %q: prompt is required", a.Name)
		}
		if a.Retry != nil && a.Retry.MaxAttempts < 1 {
			return fmt.Errorf("action %q: retry.max_attempts must be >= 1", a.Name)
		}
	}
	for _, a := range p.Actions {
		if a.Recovery != "" && !names[a.Recovery] {
			return fmt.Errorf("action %q: recovery action %q not defined", a.Name, a.Recovery)
		}
	}
	if p.Loop != nil {
		switch p.Loop.Mode {
		case "", "sequential", "parallel":
		default:
			return fmt.Errorf("unknown loop mode %q", p.Loop.Mode)
		}
		switch p.Loop.Executor {
		case "", "bounded-pool", "unbounded", "fixed-size":
		default:
			return fmt.Errorf("unknown executor %q", p.Loop.Executor)
		}
	}
	for _, s := range p.Servers {
		if s.Name == "" || s.Command == "" {
			return fmt.Errorf("mcp server entries need both name and command")
		}
	}
	return nil
}
