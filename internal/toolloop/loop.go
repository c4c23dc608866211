package toolloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrMaxIterations is the distinguished terminal outcome when the loop hits
// its iteration cap without a final model response. It is not a tool or
// model error; callers decide how to proceed.
var ErrMaxIterations = errors.New("tool loop reached max iterations")

// Result is what one loop run produced. On ErrMaxIterations the Final
// message is empty but History holds everything up to the cap.
type Result struct {
	Final      Message
	Iterations int
	History    []Message
}

// Loop drives the model/tool iteration for one action invocation.
type Loop struct {
	model ModelClient
	tools Registry
	cfg   Config
}

// New builds a loop over a model transport and a tool registry.
func New(model ModelClient, tools Registry, cfg Config) *Loop {
	return &Loop{model: model, tools: tools, cfg: cfg.withDefaults()}
}

// Run iterates until the model returns a final (tool-free) response, the
// iteration cap is reached, or the context is cancelled.
func (l *Loop) Run(ctx context.Context, seed []Message) (Result, error) {
	msgs := append([]Message(nil), seed...)
	schemas := l.tools.Schemas()

	for iter := 1; iter <= l.cfg.MaxIterations; iter++ {
		select {
		case <-ctx.Done():
			return Result{Iterations: iter - 1, History: msgs}, ctx.Err()
		default:
		}

		resp, err := l.model.Chat(ctx, msgs, schemas)
		if err != nil {
			return Result{Iterations: iter, History: msgs}, fmt.Errorf("model call: %w", err)
		}

		assistant := resp.Assistant
		assistant.Role = RoleAssistant
		assistant.ToolCalls = resp.ToolCalls
		msgs = append(msgs, assistant)

		if len(resp.ToolCalls) == 0 {
			return Result{Final: assistant, Iterations: iter, History: msgs}, nil
		}

		results := l.dispatch(ctx, resp.ToolCalls)
		for _, r := range results {
			content := r.Content
			if r.Err != nil {
				content = "ERROR: " + r.Err.Error()
			}
			id := r.Call.ID
			if id == "" {
				id = r.Call.Name
			}
			msgs = append(msgs, Message{Role: RoleTool, Name: id, Content: content})
		}
	}
	return Result{Iterations: l.cfg.MaxIterations, History: msgs}, ErrMaxIterations
}

// dispatch executes the calls of one model turn per the configured mode.
// Results always come back in call order regardless of completion order.
func (l *Loop) dispatch(ctx context.Context, calls []ToolCall) []ToolResult {
	if l.cfg.Mode == ModeParallel {
		return l.dispatchParallel(ctx, calls)
	}
	return l.dispatchSequential(ctx, calls)
}

// dispatchSequential runs calls one after another. A timeout or error on
// one call is reported for that call and never blocks the ones after it.
func (l *Loop) dispatchSequential(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	for i, c := range calls {
		results[i] = l.executeCall(ctx, c)
	}
	return results
}

func (l *Loop) dispatchParallel(ctx context.Context, calls []ToolCall) []ToolResult {
	batchCtx := ctx
	cancel := context.CancelFunc(func() {})
	if l.cfg.BatchTimeout > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, l.cfg.BatchTimeout)
	}
	defer cancel()

	var (
		mu        sync.Mutex
		abandoned bool
		done      = make([]bool, len(calls))
		results   = make([]ToolResult, len(calls))
		wg        sync.WaitGroup
	)

	record := func(i int, r ToolResult) {
		mu.Lock()
		defer mu.Unlock()
		if abandoned {
			// Batch already gave up on this call; drop the late result.
			return
		}
		results[i] = r
		done[i] = true
	}

	run := func(i int, c ToolCall) {
		defer wg.Done()
		record(i, l.executeCall(batchCtx, c))
	}

	switch l.cfg.Executor {
	case ExecutorUnbounded:
		for i, c := range calls {
			wg.Add(1)
			go run(i, c)
		}
	case ExecutorFixedSize:
		jobs := make(chan int)
		workers := min(l.cfg.PoolSize, len(calls))
		for w := 0; w < workers; w++ {
			go func() {
				for i := range jobs {
					run(i, calls[i])
				}
			}()
		}
		wg.Add(len(calls))
		go func() {
			for i := range calls {
				jobs <- i
			}
			close(jobs)
		}()
	default: // bounded-pool
		sem := make(chan struct{}, l.cfg.PoolSize)
		for i, c := range calls {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, c ToolCall) {
				defer func() { <-sem }()
				run(i, c)
			}(i, c)
		}
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-batchCtx.Done():
		// Abandon outstanding calls and proceed with what completed.
		mu.Lock()
		abandoned = true
		for i := range results {
			if !done[i] {
				results[i] = ToolResult{
					Call:     calls[i],
					Err:      fmt.Errorf("abandoned: %w", batchCtx.Err()),
					TimedOut: true,
				}
			}
		}
		mu.Unlock()
	}
	return results
}

// executeCall validates and runs a single tool call under its per-call
// timeout.
func (l *Loop) executeCall(ctx context.Context, call ToolCall) ToolResult {
	tool, ok := l.tools[call.Name]
	if !ok {
		return ToolResult{Call: call, Err: fmt.Errorf("tool not found: %s", call.Name)}
	}
	if err := tool.ValidateArgs(call.Args); err != nil {
		return ToolResult{Call: call, Err: err}
	}

	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if l.cfg.PerToolTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, l.cfg.PerToolTimeout)
	}
	defer cancel()

	type outcome struct {
		content string
		err     error
	}
	ch := make(chan outcome, 1)
	go func() {
		content, err := tool.Fn(callCtx, call.Args)
		ch <- outcome{content: content, err: err}
	}()

	// The deadline binds even when the tool ignores its context: on expiry
	// the call is reported failed and any late result is dropped.
	select {
	case out := <-ch:
		if out.err != nil {
			timedOut := errors.Is(out.err, context.DeadlineExceeded) && callCtx.Err() != nil
			return ToolResult{Call: call, Err: out.err, TimedOut: timedOut}
		}
		return ToolResult{Call: call, Content: out.content}
	case <-callCtx.Done():
		return ToolResult{
			Call:     call,
			Err:      fmt.Errorf("tool %s: %w", call.Name, callCtx.Err()),
			TimedOut: true,
		}
	}
}
