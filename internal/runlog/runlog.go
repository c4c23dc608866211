// Package runlog bridges process lifecycle events to the audit surfaces:
// stdout logging, the SQLite journal, and the Redis snapshot store. Any of
// the sinks may be absent; events are best-effort and sink errors are
// logged, never propagated into the run.
package runlog

import (
	"context"
	"log"
	"time"

	"github.com/embabel/goalrun/internal/journal"
	"github.com/embabel/goalrun/internal/process"
	"github.com/embabel/goalrun/internal/snapstore"
)

// Recorder implements process.Observer.
type Recorder struct {
	journal *journal.Journal
	snaps   *snapstore.Store
	timeout time.Duration
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithJournal persists run rows and events to the journal.
func WithJournal(j *journal.Journal) Option {
	return func(r *Recorder) { r.journal = j }
}

// WithSnapshots persists a blackboard snapshot on every transition.
func WithSnapshots(s *snapstore.Store) Option {
	return func(r *Recorder) { r.snaps = s }
}

// New builds a recorder. With no options it only logs.
func New(opts ...Option) *Recorder {
	r := &Recorder{timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates the journal row for a new process. Call it once after
// platform.Create.
func (r *Recorder) Register(p *process.Process) {
	if r.journal == nil {
		return
	}
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.journal.CreateRun(ctx, p.ID(), p.Agent().Name, string(p.Status())); err != nil {
		log.Printf("runlog: failed to register run %s: %v", p.ID(), err)
	}
}

func (r *Recorder) OnTransition(p *process.Process, from, to process.Status) {
	log.Printf("run %s: %s -> %s", p.ID(), from, to)

	ctx, cancel := r.ctx()
	defer cancel()

	if r.journal != nil {
		var errMsg string
		if err := p.Err(); err != nil {
			errMsg = err.Error()
		}
		if err := r.journal.UpdateStatus(ctx, p.ID(), string(to), errMsg); err != nil {
			log.Printf("runlog: failed to journal transition for run %s: %v", p.ID(), err)
		}
	}

	if r.snaps != nil {
		rec := snapstore.Record{
			RunID:    p.ID(),
			Agent:    p.Agent().Name,
			Status:   string(to),
			TakenAt:  time.Now().UTC(),
			Snapshot: p.Blackboard().Snapshot(),
		}
		if err := r.snaps.Save(ctx, rec); err != nil {
			log.Printf("runlog: failed to snapshot run %s: %v", p.ID(), err)
		}
	}
}

func (r *Recorder) OnHistory(p *process.Process, e process.HistoryEntry) {
	log.Printf("run %s: action %s %s (attempts=%d)", p.ID(), e.Action, e.Outcome, e.Attempts)

	if r.journal == nil {
		return
	}
	ctx, cancel := r.ctx()
	defer cancel()
	err := r.journal.AppendEvent(ctx, journal.EventRecord{
		RunID:    p.ID(),
		Action:   e.Action,
		Outcome:  e.Outcome,
		Attempts: e.Attempts,
		Error:    e.Error,
		At:       e.At.Unix(),
	})
	if err != nil {
		log.Printf("runlog: failed to journal event for run %s: %v", p.ID(), err)
	}
}

func (r *Recorder) OnRetry(p *process.Process, action string, attempt int, err error) {
	log.Printf("run %s: action %s attempt %d failed, retrying: %v", p.ID(), action, attempt, err)
}

func (r *Recorder) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}
