// Package process implements the execution runtime: it drives a single
// agent run through planning, action invocation with retry, replanning,
// waiting and stuck handling until a goal is satisfied or the run terminally
// fails.
package process

import (
	"context"
	"sync"
	"time"

	"github.com/embabel/goalrun/internal/action"
	"github.com/embabel/goalrun/internal/blackboard"
	"github.com/embabel/goalrun/internal/condition"
	"github.com/embabel/goalrun/internal/planner"
)

// Status is the lifecycle state of a run. WAITING, PAUSED and STUCK are
// re-entrant back to RUNNING; COMPLETED, FAILED and KILLED are terminal.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusWaiting   Status = "WAITING"
	StatusPaused    Status = "PAUSED"
	StatusStuck     Status = "STUCK"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusKilled    Status = "KILLED"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusKilled:
		return true
	}
	return false
}

// HistoryEntry records one executed action invocation. History is
// append-only and used for introspection and testing, never for planning.
type HistoryEntry struct {
	Action   string    `json:"action"`
	At       time.Time `json:"at"`
	Outcome  string    `json:"outcome"` // completed | failed | replan | awaiting | recovered
	Attempts int       `json:"attempts"`
	Error    string    `json:"error,omitempty"`
}

// Diagnosis is surfaced when a run gets stuck or fails to resolve: the goal
// that could not be reached plus the blackboard contents at that point.
type Diagnosis struct {
	Goal     action.Goal         `json:"goal"`
	Snapshot blackboard.Snapshot `json:"snapshot"`
}

// Agent is the immutable definition a process runs: a closed registry of
// actions and goals, a planning strategy (fixed for the lifetime of the
// run), a condition evaluator, and an optional stuck handler.
type Agent struct {
	Name      string
	Registry  *action.Registry
	Planner   planner.Planner
	Evaluator condition.Evaluator
	Stuck     StuckHandler
}

// pendingAwait tracks what a WAITING run is suspended on.
type pendingAwait struct {
	request string
	bindAs  string
}

// Process is one agent run: a status, a blackboard, and an append-only
// history. It is owned by the platform that created it.
type Process struct {
	id    string
	agent Agent
	bb    *blackboard.Blackboard
	obs   Observer

	mu        sync.Mutex
	status    Status
	history   []HistoryEntry
	err       error
	plan      *planner.Plan
	planIdx   int
	pending   *pendingAwait
	diagnosis *Diagnosis
	killed    bool
	cancel    context.CancelFunc // cancels an in-flight Run
}

// ID returns the process identifier.
func (p *Process) ID() string { return p.id }

// Agent returns the agent definition this process runs.
func (p *Process) Agent() Agent { return p.agent }

// Blackboard returns the run's blackboard. Callers may seed protected
// bindings before the first Run.
func (p *Process) Blackboard() *blackboard.Blackboard { return p.bb }

// Status returns the current lifecycle state.
func (p *Process) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Err returns the terminal error of a FAILED run.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// History returns a copy of the executed-action log.
func (p *Process) History() []HistoryEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]HistoryEntry(nil), p.history...)
}

// AwaitRequest returns what a WAITING run is suspended on, or "" when the
// run is not waiting.
func (p *Process) AwaitRequest() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return ""
	}
	return p.pending.request
}

// Diagnosis returns the stuck/failure diagnosis, if any.
func (p *Process) Diagnosis() *Diagnosis {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.diagnosis
}

func (p *Process) setStatus(s Status) {
	p.mu.Lock()
	if p.status == s || p.status.Terminal() {
		p.mu.Unlock()
		return
	}
	old := p.status
	p.status = s
	p.mu.Unlock()
	if p.obs != nil {
		p.obs.OnTransition(p, old, s)
	}
}

func (p *Process) appendHistory(e HistoryEntry) {
	p.mu.Lock()
	p.history = append(p.history, e)
	p.mu.Unlock()
	if p.obs != nil {
		p.obs.OnHistory(p, e)
	}
}

func (p *Process) isKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// Kill forcibly terminates the run. It is terminal, wins over any
// in-progress retry, backoff or suspension, and cancels an in-flight action
// cooperatively. The blackboard is left as-is with no rollback.
func (p *Process) Kill() {
	p.mu.Lock()
	p.killed = true
	cancel := p.cancel
	alreadyTerminal := p.status.Terminal()
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if !alreadyTerminal {
		p.setStatus(StatusKilled)
	}
}

// Pause requests the run suspend at the next loop boundary. A paused
// process continues when the owner drives it again via Run.
func (p *Process) Pause() {
	p.setStatus(StatusPaused)
}

// Resume supplies the value a WAITING run is suspended on and moves the run
// back to RUNNING. The caller then drives it again via Run.
func (p *Process) Resume(value any) error {
	p.mu.Lock()
	if p.status != StatusWaiting {
		s := p.status
		p.mu.Unlock()
		return &StateError{ProcessID: p.id, Status: s, Op: "resume"}
	}
	pending := p.pending
	p.pending = nil
	// The world changed while suspended: discard the stale plan.
	p.plan = nil
	p.mu.Unlock()

	if value != nil {
		if pending != nil && pending.bindAs != "" {
			p.bb.Set(pending.bindAs, value)
		} else {
			p.bb.BindResult(value)
		}
	}
	p.setStatus(StatusRunning)
	return nil
}
