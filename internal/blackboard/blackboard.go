// Package blackboard implements the shared mutable world-state store for a
// single agent run. Every component of the runtime reads and writes through
// it: action inputs are resolved from it, action outputs are bound back to
// it, and condition evaluation is a pure function of its contents.
package blackboard

import (
	"fmt"
	"reflect"
	"sync"
)

// It is the default binding name for the most recent action output.
const It = "it"

// entry is a single addition to the blackboard. Named bindings and anonymous
// objects share one insertion-ordered list so that type-based lookup can
// always answer "most recently added value assignable to T".
type entry struct {
	name      string // empty for anonymous objects
	value     any
	protected bool
}

// Blackboard is a named, typed mapping from binding name to value, plus an
// unordered collection of anonymous objects addressable only by type.
// It is safe for concurrent use; every mutation is applied under a mutex so
// parallel tool calls serialize at the point of mutation.
type Blackboard struct {
	mu      sync.RWMutex
	entries []entry
	index   map[string]int // binding name -> position in entries
}

// New creates an empty blackboard.
func New() *Blackboard {
	return &Blackboard{index: make(map[string]int)}
}

// Seed creates a blackboard pre-populated with default bindings.
func Seed(bindings map[string]any) *Blackboard {
	b := New()
	for name, v := range bindings {
		b.Set(name, v)
	}
	return b
}

// Get returns the value bound under name.
func (b *Blackboard) Get(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}
	return b.entries[i].value, true
}

// Set binds value under name as a default binding. Writing an existing name
// overwrites the value; a name bound protected stays protected.
func (b *Blackboard) Set(name string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(name, value, false)
}

// SetProtected binds value under name as a protected binding, which survives
// ClearDefaultBindings. Protected status is fixed at first bind: rebinding an
// existing default name as protected is an error.
func (b *Blackboard) SetProtected(name string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i, ok := b.index[name]; ok && !b.entries[i].protected {
		return fmt.Errorf("binding %q already exists unprotected", name)
	}
	b.set(name, value, true)
	return nil
}

// set overwrites by removing the stale entry and appending, so the entry
// list stays ordered by recency. Caller holds the lock.
func (b *Blackboard) set(name string, value any, protected bool) {
	if i, ok := b.index[name]; ok {
		protected = b.entries[i].protected || protected
		b.removeAt(i)
	}
	b.entries = append(b.entries, entry{name: name, value: value, protected: protected})
	b.index[name] = len(b.entries) - 1
}

func (b *Blackboard) removeAt(i int) {
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	for n, j := range b.index {
		if j > i {
			b.index[n] = j - 1
		}
	}
}

// IsProtected reports whether name is bound and protected.
func (b *Blackboard) IsProtected(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[name]
	return ok && b.entries[i].protected
}

// AddObject adds an anonymous, type-addressed value.
func (b *Blackboard) AddObject(value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry{value: value})
}

// Objects returns a snapshot of the anonymous objects, oldest first.
func (b *Blackboard) Objects() []any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var objs []any
	for _, e := range b.entries {
		if e.name == "" {
			objs = append(objs, e.value)
		}
	}
	return objs
}

// GetByType returns the most recently added value (named or anonymous)
// assignable to target.
func (b *Blackboard) GetByType(target reflect.Type) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i := len(b.entries) - 1; i >= 0; i-- {
		if assignable(b.entries[i].value, target) {
			return b.entries[i].value, true
		}
	}
	return nil, false
}

// Last returns the most recently added value of any kind, used by
// "last-result" input qualifiers.
func (b *Blackboard) Last() (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.entries) == 0 {
		return nil, false
	}
	return b.entries[len(b.entries)-1].value, true
}

// HasType reports whether a value assignable to target is present.
func (b *Blackboard) HasType(target reflect.Type) bool {
	_, ok := b.GetByType(target)
	return ok
}

// ClearDefaultBindings removes all non-protected bindings and all anonymous
// objects. Protected bindings survive. Invoked once per executed action whose
// declared output type is a state type.
func (b *Blackboard) ClearDefaultBindings() {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.protected {
			kept = append(kept, e)
		}
	}
	b.entries = kept
	b.index = make(map[string]int, len(kept))
	for i, e := range kept {
		b.index[e.name] = i
	}
}

// Snapshot captures the blackboard contents for diagnostics. The maps hold
// live references; callers must treat them as read-only.
type Snapshot struct {
	Bindings  map[string]any `json:"bindings"`
	Protected map[string]any `json:"protected"`
	Objects   []any          `json:"objects,omitempty"`
}

// Snapshot returns a point-in-time view of all bindings and objects.
func (b *Blackboard) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := Snapshot{
		Bindings:  make(map[string]any),
		Protected: make(map[string]any),
	}
	for _, e := range b.entries {
		switch {
		case e.name == "":
			snap.Objects = append(snap.Objects, e.value)
		case e.protected:
			snap.Protected[e.name] = e.value
		default:
			snap.Bindings[e.name] = e.value
		}
	}
	return snap
}

// BindResult binds an action output under the first free default name in the
// sequence it, it2, it3, ... mirroring how successive non-state outputs
// accumulate without displacing each other.
func (b *Blackboard) BindResult(value any) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := It
	for n := 2; ; n++ {
		if _, taken := b.index[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s%d", It, n)
	}
	b.set(name, value, false)
	return name
}

func assignable(v any, target reflect.Type) bool {
	if v == nil || target == nil {
		return false
	}
	t := reflect.TypeOf(v)
	if target.Kind() == reflect.Interface {
		return t.Implements(target)
	}
	return t.AssignableTo(target)
}

// TypeOf returns the reflect.Type for T, the way action and goal definitions
// declare their input and output types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// GetTyped is a typed convenience wrapper over Get.
func GetTyped[T any](b *Blackboard, name string) (T, bool) {
	var zero T
	v, ok := b.Get(name)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
