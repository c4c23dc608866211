package planner

import (
	"container/heap"
	"context"
	"reflect"
	"sort"
	"strings"

	"github.com/embabel/goalrun/internal/action"
	"github.com/embabel/goalrun/internal/blackboard"
	"github.com/embabel/goalrun/internal/condition"
)

// GOAP is the search-based strategy: forward state-space search over action
// preconditions and effects, returning the lowest-total-cost sequence whose
// chained effects satisfy a goal. Search depth is bounded by the number of
// distinct actions and no action repeats within a plan, so search always
// terminates.
type GOAP struct {
	ev condition.Evaluator
}

// NewGOAP builds a search planner over the given condition evaluator.
func NewGOAP(ev condition.Evaluator) *GOAP {
	return &GOAP{ev: ev}
}

// worldState is the simulated planning state: condition names established as
// true, plus output types produced so far. Named bindings are static during
// search; only effects and outputs change.
type worldState struct {
	facts    map[string]bool
	produced []reflect.Type
}

func (g *GOAP) Plan(ctx context.Context, bb *blackboard.Blackboard, goals []action.Goal, actions []action.Action) (*Plan, error) {
	var best *Plan
	for _, goal := range goals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := g.search(ctx, bb, goal, actions)
		if p == nil {
			continue
		}
		if best == nil || p.Cost < best.Cost {
			best = p
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if best == nil {
		return nil, ErrNoPlanFound
	}
	return best, nil
}

// node is a partial plan in the search frontier.
type node struct {
	state worldState
	seq   []int // indexes into actions
	cost  float64
}

func (g *GOAP) search(ctx context.Context, bb *blackboard.Blackboard, goal action.Goal, actions []action.Action) *Plan {
	initial := g.initialState(bb, goal, actions)

	start := node{state: initial}
	if g.satisfies(bb, goal, start, actions) {
		return &Plan{Goal: goal}
	}

	frontier := &nodeHeap{actions: actions}
	heap.Init(frontier)
	heap.Push(frontier, start)
	visited := map[string]bool{}

	for frontier.Len() > 0 {
		if ctx.Err() != nil {
			return nil
		}
		cur := heap.Pop(frontier).(node)
		key := cur.key(actions)
		if visited[key] {
			continue
		}
		visited[key] = true

		if g.satisfies(bb, goal, cur, actions) {
			return g.toPlan(goal, cur, actions)
		}
		if len(cur.seq) >= len(actions) {
			continue
		}
		for i, a := range actions {
			if cur.used(i) {
				// Repeats are treated conservatively as not allowed.
				continue
			}
			if !g.applicable(bb, a, cur.state) {
				continue
			}
			next := node{
				state: apply(cur.state, a),
				seq:   append(append([]int(nil), cur.seq...), i),
				cost:  cur.cost + a.EffectiveCost(bb),
			}
			heap.Push(frontier, next)
		}
	}
	return nil
}

// initialState evaluates every condition referenced by the actions or the
// goal. Only a definitive True becomes a fact: an Unknown precondition must
// never be assumed true.
func (g *GOAP) initialState(bb *blackboard.Blackboard, goal action.Goal, actions []action.Action) worldState {
	names := map[string]bool{}
	for _, a := range actions {
		for _, n := range a.Pre {
			names[n] = true
		}
		for _, n := range a.Effects {
			names[n] = true
		}
	}
	if goal.Condition != "" {
		names[goal.Condition] = true
	}
	st := worldState{facts: make(map[string]bool, len(names))}
	for n := range names {
		if g.ev.Evaluate(n, bb) == condition.True {
			st.facts[n] = true
		}
	}
	return st
}

func (g *GOAP) applicable(bb *blackboard.Blackboard, a action.Action, st worldState) bool {
	for _, pre := range a.Pre {
		if !st.facts[pre] {
			return false
		}
	}
	for _, in := range a.Inputs {
		if !g.inputReachable(bb, in, st) {
			return false
		}
	}
	return true
}

// inputReachable checks whether an input can be satisfied in the simulated
// state: named bindings only from the real blackboard, type lookups from the
// blackboard or from any simulated output. A last-result qualifier must be
// met by the most recent production.
func (g *GOAP) inputReachable(bb *blackboard.Blackboard, in action.Input, st worldState) bool {
	if in.Name != "" {
		_, ok := bb.Get(in.Name)
		return ok
	}
	if in.LastResult {
		if len(st.produced) > 0 {
			return typeAssignable(st.produced[len(st.produced)-1], in.Type)
		}
		last, ok := bb.Last()
		return ok && valueAssignable(last, in.Type)
	}
	for _, t := range st.produced {
		if typeAssignable(t, in.Type) {
			return true
		}
	}
	return bb.HasType(in.Type)
}

func (g *GOAP) satisfies(bb *blackboard.Blackboard, goal action.Goal, n node, actions []action.Action) bool {
	if goal.OutputType == nil && goal.Condition == "" {
		return false
	}
	if goal.OutputType != nil {
		found := bb.HasType(goal.OutputType)
		for _, t := range n.state.produced {
			if typeAssignable(t, goal.OutputType) {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if goal.Condition != "" && !n.state.facts[goal.Condition] {
		return false
	}
	return true
}

func apply(st worldState, a action.Action) worldState {
	next := worldState{
		facts:    make(map[string]bool, len(st.facts)+len(a.Effects)),
		produced: append(append([]reflect.Type(nil), st.produced...), a.Output),
	}
	for n := range st.facts {
		next.facts[n] = true
	}
	for _, e := range a.Effects {
		next.facts[e] = true
	}
	return next
}

func (g *GOAP) toPlan(goal action.Goal, n node, actions []action.Action) *Plan {
	p := &Plan{Goal: goal, Cost: n.cost}
	for _, i := range n.seq {
		p.Actions = append(p.Actions, actions[i])
	}
	return p
}

func (n node) used(i int) bool {
	for _, j := range n.seq {
		if j == i {
			return true
		}
	}
	return false
}

// key identifies the simulated state: the set of actions taken plus the most
// recent output. Facts and the produced multiset are order-insensitive, but
// last-result inputs depend on which action ran last, so two orderings of
// the same set are distinct states unless their final outputs agree.
func (n node) key(actions []action.Action) string {
	names := make([]string, len(n.seq))
	for i, j := range n.seq {
		names[i] = actions[j].Name
	}
	sort.Strings(names)
	last := "-"
	if p := n.state.produced; len(p) > 0 {
		if t := p[len(p)-1]; t != nil {
			last = t.String()
		} else {
			last = "none"
		}
	}
	return strings.Join(names, "|") + ">" + last
}

func typeAssignable(t, target reflect.Type) bool {
	if t == nil || target == nil {
		return false
	}
	if target.Kind() == reflect.Interface {
		return t.Implements(target)
	}
	return t.AssignableTo(target)
}

func valueAssignable(v any, target reflect.Type) bool {
	if v == nil {
		return false
	}
	return typeAssignable(reflect.TypeOf(v), target)
}

// nodeHeap orders the frontier by cost, then plan length, then lexical
// action sequence so identical inputs always expand identically.
type nodeHeap struct {
	nodes   []node
	actions []action.Action
}

func (h *nodeHeap) Len() int { return len(h.nodes) }

func (h *nodeHeap) Less(i, j int) bool {
	a, b := h.nodes[i], h.nodes[j]
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if len(a.seq) != len(b.seq) {
		return len(a.seq) < len(b.seq)
	}
	return h.seqKey(a) < h.seqKey(b)
}

func (h *nodeHeap) seqKey(n node) string {
	names := make([]string, len(n.seq))
	for i, j := range n.seq {
		names[i] = h.actions[j].Name
	}
	return strings.Join(names, "|")
}

func (h *nodeHeap) Swap(i, j int) { h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i] }

func (h *nodeHeap) Push(x any) { h.nodes = append(h.nodes, x.(node)) }

func (h *nodeHeap) Pop() any {
	old := h.nodes
	n := old[len(old)-1]
	h.nodes = old[:len(old)-1]
	return n
}
