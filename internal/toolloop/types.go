// Package toolloop implements the bounded model/tool iteration used inside a
// single action: call an external model, execute any tools it requests
// (sequentially or with bounded parallelism), feed the results back, and
// repeat until the model produces a final answer or the iteration cap is
// reached.
package toolloop

import (
	"context"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Role identifies a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is the provider-agnostic message passed to and from the model
// transport.
type Message struct {
	Role    Role
	Content string
	// Name carries the tool call ID for tool result messages.
	Name string
	// ToolCalls holds the calls an assistant message requested, needed when
	// converting back to provider wire formats.
	ToolCalls []ToolCall
}

// ToolCall is one tool invocation requested by the model. Args arrive as an
// opaque structured payload.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is the per-call outcome of one dispatched tool call. A failed
// or timed-out call never affects sibling calls in the same batch.
type ToolResult struct {
	Call     ToolCall
	Content  string
	Err      error
	TimedOut bool
}

// Response is the normalized result of one model call.
type Response struct {
	Assistant Message
	ToolCalls []ToolCall
}

// ModelClient abstracts the model transport. The core treats it as a black
// box that requests tool calls and accepts their results.
type ModelClient interface {
	Chat(ctx context.Context, messages []Message, schemas []Schema) (Response, error)
}

// Schema describes one tool to the model provider.
type Schema struct {
	Name        string
	Description string
	JSONSchema  string
}

// ToolFunc executes one tool call. Implementations may mutate the
// blackboard; mutation is serialized by the blackboard itself.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool pairs a schema with its implementation.
type Tool struct {
	Name        string
	Description string
	SchemaJSON  string
	Fn          ToolFunc
}

// ValidateArgs validates a call's argument payload against the tool's JSON
// schema before dispatch.
func (t Tool) ValidateArgs(args map[string]any) error {
	if t.SchemaJSON == "" {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(t.SchemaJSON),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("tool %s: invalid arguments: %v", t.Name, msgs)
	}
	return nil
}

// Registry is the set of tools available to one loop.
type Registry map[string]Tool

// Schemas lists the registry's tool schemas for the model transport.
func (r Registry) Schemas() []Schema {
	s := make([]Schema, 0, len(r))
	for _, t := range r {
		s = append(s, Schema{Name: t.Name, Description: t.Description, JSONSchema: t.SchemaJSON})
	}
	return s
}

// Mode selects how tool calls within one model turn are dispatched.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"
)

// ExecutorType selects the concurrency shape of parallel dispatch.
type ExecutorType string

const (
	ExecutorBoundedPool ExecutorType = "bounded-pool"
	ExecutorUnbounded   ExecutorType = "unbounded"
	ExecutorFixedSize   ExecutorType = "fixed-size"
)

// DefaultMaxIterations bounds the model/tool loop when unset.
const DefaultMaxIterations = 20

// Config is the immutable loop configuration.
type Config struct {
	MaxIterations int
	Mode          Mode
	// PerToolTimeout bounds each call; a call exceeding it fails alone.
	PerToolTimeout time.Duration
	// BatchTimeout bounds a whole parallel batch; on expiry outstanding
	// calls are abandoned and the loop proceeds with partial results.
	BatchTimeout time.Duration
	Executor     ExecutorType
	PoolSize     int
}

// DefaultConfig is a sequential loop with the default iteration cap.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		Mode:          ModeSequential,
		Executor:      ExecutorBoundedPool,
		PoolSize:      4,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Mode == "" {
		c.Mode = ModeSequential
	}
	if c.Executor == "" {
		c.Executor = ExecutorBoundedPool
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	return c
}
