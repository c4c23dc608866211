package process

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/embabel/goalrun/internal/blackboard"
)

// Seed is the initial blackboard contents of a new run. Protected bindings
// survive state clears for the lifetime of the process.
type Seed struct {
	Bindings  map[string]any
	Protected map[string]any
}

// Info is a point-in-time view of a process for listings and status
// queries.
type Info struct {
	ID     string
	Agent  string
	Status Status
	Error  string
}

// Platform creates and tracks processes. A single platform may own many
// concurrent runs; each run is single-threaded internally.
type Platform struct {
	obs Observer

	mu    sync.Mutex
	procs map[string]*Process
}

// NewPlatform returns a platform that reports lifecycle events to obs.
// A nil observer disables reporting.
func NewPlatform(obs Observer) *Platform {
	return &Platform{obs: obs, procs: make(map[string]*Process)}
}

// Create registers a new process for the given agent. The process starts in
// RUNNING and is driven by Run.
func (pl *Platform) Create(agent Agent, seed Seed) (*Process, error) {
	if agent.Registry == nil {
		return nil, fmt.Errorf("agent %q: registry is required", agent.Name)
	}
	if agent.Planner == nil {
		return nil, fmt.Errorf("agent %q: planner is required", agent.Name)
	}
	if agent.Evaluator == nil {
		return nil, fmt.Errorf("agent %q: evaluator is required", agent.Name)
	}

	bb := blackboard.New()
	for name, v := range seed.Bindings {
		bb.Set(name, v)
	}
	for name, v := range seed.Protected {
		if err := bb.SetProtected(name, v); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	p := &Process{
		id:     uuid.NewString(),
		agent:  agent,
		bb:     bb,
		obs:    pl.obs,
		status: StatusRunning,
	}

	pl.mu.Lock()
	pl.procs[p.id] = p
	pl.mu.Unlock()
	return p, nil
}

// Get looks up a process by id.
func (pl *Platform) Get(id string) (*Process, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	p, ok := pl.procs[id]
	if !ok {
		return nil, fmt.Errorf("process %s: %w", id, ErrProcessNotFound)
	}
	return p, nil
}

// Info returns a status summary for one process.
func (pl *Platform) Info(id string) (Info, error) {
	p, err := pl.Get(id)
	if err != nil {
		return Info{}, err
	}
	return infoOf(p), nil
}

// List returns summaries of all known processes, ordered by id.
func (pl *Platform) List() []Info {
	pl.mu.Lock()
	infos := make([]Info, 0, len(pl.procs))
	for _, p := range pl.procs {
		infos = append(infos, infoOf(p))
	}
	pl.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Run drives a process by id. See Process.Run.
func (pl *Platform) Run(ctx context.Context, id string) error {
	p, err := pl.Get(id)
	if err != nil {
		return err
	}
	return p.Run(ctx)
}

// Resume supplies a WAITING process's awaited value by id.
func (pl *Platform) Resume(id string, value any) error {
	p, err := pl.Get(id)
	if err != nil {
		return err
	}
	return p.Resume(value)
}

// Pause asks the process to stop at its next step boundary. Running it
// again picks up where it left off.
func (pl *Platform) Pause(id string) error {
	p, err := pl.Get(id)
	if err != nil {
		return err
	}
	p.Pause()
	return nil
}

// Kill terminates a run by id.
func (pl *Platform) Kill(id string) error {
	p, err := pl.Get(id)
	if err != nil {
		return err
	}
	p.Kill()
	return nil
}

func infoOf(p *Process) Info {
	info := Info{ID: p.ID(), Agent: p.agent.Name, Status: p.Status()}
	if err := p.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}
