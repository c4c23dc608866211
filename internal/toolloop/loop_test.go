package toolloop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedModel returns canned responses in order, then a final answer.
type scriptedModel struct {
	mu    sync.Mutex
	turns []Response
	calls int
}

func (m *scriptedModel) Chat(ctx context.Context, msgs []Message, schemas []Schema) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls < len(m.turns) {
		resp := m.turns[m.calls]
		m.calls++
		return resp, nil
	}
	m.calls++
	return Response{Assistant: Message{Role: RoleAssistant, Content: "final"}}, nil
}

func toolTurn(calls ...ToolCall) Response {
	return Response{Assistant: Message{Role: RoleAssistant}, ToolCalls: calls}
}

func echoTool(name string) Tool {
	return Tool{
		Name:       name,
		SchemaJSON: `{"type":"object","properties":{"msg":{"type":"string"}}}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			s, _ := args["msg"].(string)
			return "echo:" + s, nil
		},
	}
}

func TestLoopTerminatesOnFinalResponse(t *testing.T) {
	model := &scriptedModel{turns: []Response{
		toolTurn(ToolCall{ID: "1", Name: "echo", Args: map[string]any{"msg": "hi"}}),
	}}
	loop := New(model, Registry{"echo": echoTool("echo")}, DefaultConfig())

	res, err := loop.Run(context.Background(), []Message{{Role: RoleUser, Content: "go"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Final.Content != "final" {
		t.Errorf("final = %q", res.Final.Content)
	}
	if res.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", res.Iterations)
	}
	// Tool result message present in history with the call ID.
	found := false
	for _, m := range res.History {
		if m.Role == RoleTool && m.Name == "1" && m.Content == "echo:hi" {
			found = true
		}
	}
	if !found {
		t.Errorf("tool result not in history: %+v", res.History)
	}
}

func TestLoopMaxIterations(t *testing.T) {
	// Model requests a tool call on every turn, forever.
	endless := make([]Response, 100)
	for i := range endless {
		endless[i] = toolTurn(ToolCall{ID: "x", Name: "echo", Args: map[string]any{"msg": "again"}})
	}
	model := &scriptedModel{turns: endless}
	cfg := DefaultConfig()
	cfg.MaxIterations = 3
	loop := New(model, Registry{"echo": echoTool("echo")}, cfg)

	res, err := loop.Run(context.Background(), nil)
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("err = %v, want ErrMaxIterations", err)
	}
	if res.Iterations != 3 {
		t.Errorf("iterations = %d, want 3", res.Iterations)
	}
}

func TestSequentialErrorIsolation(t *testing.T) {
	boom := Tool{Name: "boom", Fn: func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("kaboom")
	}}
	model := &scriptedModel{turns: []Response{toolTurn(
		ToolCall{ID: "1", Name: "boom"},
		ToolCall{ID: "2", Name: "echo", Args: map[string]any{"msg": "after"}},
	)}}
	loop := New(model, Registry{"boom": boom, "echo": echoTool("echo")}, DefaultConfig())

	res, err := loop.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var errMsg, okMsg bool
	for _, m := range res.History {
		if m.Role != RoleTool {
			continue
		}
		if m.Name == "1" && strings.HasPrefix(m.Content, "ERROR:") {
			errMsg = true
		}
		if m.Name == "2" && m.Content == "echo:after" {
			okMsg = true
		}
	}
	if !errMsg || !okMsg {
		t.Errorf("error isolation broken: err=%v ok=%v history=%+v", errMsg, okMsg, res.History)
	}
}

func TestParallelPerToolTimeoutIsolation(t *testing.T) {
	slow := Tool{Name: "slow", Fn: func(ctx context.Context, args map[string]any) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "too late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}}
	fast := Tool{Name: "fast", Fn: func(ctx context.Context, args map[string]any) (string, error) {
		return "quick", nil
	}}

	cfg := Config{Mode: ModeParallel, PerToolTimeout: 20 * time.Millisecond, Executor: ExecutorUnbounded}
	loop := New(nil, Registry{"slow": slow, "fast": fast}, cfg)

	results := loop.dispatch(context.Background(), []ToolCall{
		{ID: "s", Name: "slow"},
		{ID: "f", Name: "fast"},
	})
	if results[0].Err == nil || !results[0].TimedOut {
		t.Errorf("slow call: %+v, want timeout", results[0])
	}
	// One call exceeding its timeout never prevents siblings from reporting.
	if results[1].Err != nil || results[1].Content != "quick" {
		t.Errorf("fast call: %+v", results[1])
	}
}

func TestPerToolTimeoutBindsUncooperativeTool(t *testing.T) {
	// The tool ignores its context entirely and eventually returns success.
	// The deadline must still mark the call failed, and sequential dispatch
	// must not sit out the full sleep waiting for it.
	stubborn := Tool{Name: "stubborn", Fn: func(ctx context.Context, args map[string]any) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "too late", nil
	}}

	cfg := Config{Mode: ModeSequential, PerToolTimeout: 10 * time.Millisecond}
	loop := New(nil, Registry{"stubborn": stubborn}, cfg)

	start := time.Now()
	results := loop.dispatch(context.Background(), []ToolCall{{ID: "s", Name: "stubborn"}})
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("dispatch waited out the tool: took %v", elapsed)
	}
	if results[0].Err == nil || !results[0].TimedOut {
		t.Errorf("result = %+v, want timed-out failure", results[0])
	}
	if results[0].Content == "too late" {
		t.Errorf("late success leaked through: %+v", results[0])
	}
}

func TestParallelBatchTimeoutAbandonsOutstanding(t *testing.T) {
	block := Tool{Name: "block", Fn: func(ctx context.Context, args map[string]any) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	fast := Tool{Name: "fast", Fn: func(ctx context.Context, args map[string]any) (string, error) {
		return "ok", nil
	}}

	cfg := Config{Mode: ModeParallel, BatchTimeout: 30 * time.Millisecond, Executor: ExecutorUnbounded}
	loop := New(nil, Registry{"block": block, "fast": fast}, cfg)

	start := time.Now()
	results := loop.dispatch(context.Background(), []ToolCall{
		{ID: "b", Name: "block"},
		{ID: "f", Name: "fast"},
	})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("batch did not abandon: took %v", elapsed)
	}
	if !results[0].TimedOut {
		t.Errorf("blocked call not marked abandoned: %+v", results[0])
	}
	if results[1].Content != "ok" {
		t.Errorf("completed call lost: %+v", results[1])
	}
}

func TestExecutorShapes(t *testing.T) {
	for _, exec := range []ExecutorType{ExecutorBoundedPool, ExecutorUnbounded, ExecutorFixedSize} {
		t.Run(string(exec), func(t *testing.T) {
			cfg := Config{Mode: ModeParallel, Executor: exec, PoolSize: 2}
			loop := New(nil, Registry{"echo": echoTool("echo")}, cfg)

			calls := make([]ToolCall, 8)
			for i := range calls {
				calls[i] = ToolCall{ID: "c", Name: "echo", Args: map[string]any{"msg": "m"}}
			}
			results := loop.dispatch(context.Background(), calls)
			for i, r := range results {
				if r.Err != nil || r.Content != "echo:m" {
					t.Errorf("call %d: %+v", i, r)
				}
			}
		})
	}
}

func TestArgumentValidation(t *testing.T) {
	strict := Tool{
		Name:       "strict",
		SchemaJSON: `{"type":"object","properties":{"n":{"type":"integer"}},"required":["n"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return "ran", nil
		},
	}
	loop := New(nil, Registry{"strict": strict}, DefaultConfig())

	r := loop.executeCall(context.Background(), ToolCall{Name: "strict", Args: map[string]any{}})
	if r.Err == nil {
		t.Error("expected validation error for missing required arg")
	}
	r = loop.executeCall(context.Background(), ToolCall{Name: "strict", Args: map[string]any{"n": 3}})
	if r.Err != nil || r.Content != "ran" {
		t.Errorf("valid args: %+v", r)
	}

	r = loop.executeCall(context.Background(), ToolCall{Name: "ghost"})
	if r.Err == nil {
		t.Error("expected error for unknown tool")
	}
}
