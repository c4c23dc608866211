package action

import (
	"context"
	"testing"

	"github.com/embabel/goalrun/internal/blackboard"
	"github.com/embabel/goalrun/internal/condition"
)

type draft struct{ Text string }
type report struct{ Text string }

func noopRun(ctx context.Context, inv Invocation) Outcome {
	return Complete(nil)
}

func TestPreconditionsHold(t *testing.T) {
	ev := condition.BlackboardEvaluator{}

	tests := []struct {
		name  string
		act   Action
		setup func(bb *blackboard.Blackboard)
		want  condition.Value
	}{
		{
			name: "no requirements",
			act:  Action{Name: "a", Run: noopRun},
			want: condition.True,
		},
		{
			name: "condition true",
			act:  Action{Name: "a", Pre: []string{"ready"}, Run: noopRun},
			setup: func(bb *blackboard.Blackboard) {
				bb.Set("ready", true)
			},
			want: condition.True,
		},
		{
			name: "condition unknown blocks without becoming false",
			act:  Action{Name: "a", Pre: []string{"ready"}, Run: noopRun},
			want: condition.Unknown,
		},
		{
			name: "condition false",
			act:  Action{Name: "a", Pre: []string{"ready"}, Run: noopRun},
			setup: func(bb *blackboard.Blackboard) {
				bb.Set("ready", false)
			},
			want: condition.False,
		},
		{
			name: "missing type input",
			act: Action{Name: "a", Run: noopRun,
				Inputs: []Input{{Type: blackboard.TypeOf[draft]()}}},
			want: condition.False,
		},
		{
			name: "type input present",
			act: Action{Name: "a", Run: noopRun,
				Inputs: []Input{{Type: blackboard.TypeOf[draft]()}}},
			setup: func(bb *blackboard.Blackboard) {
				bb.AddObject(draft{Text: "d"})
			},
			want: condition.True,
		},
		{
			name: "last-result qualifier rejects stale type",
			act: Action{Name: "a", Run: noopRun,
				Inputs: []Input{{Type: blackboard.TypeOf[draft](), LastResult: true}}},
			setup: func(bb *blackboard.Blackboard) {
				bb.AddObject(draft{Text: "d"})
				bb.AddObject(report{Text: "newer"})
			},
			want: condition.False,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bb := blackboard.New()
			if tt.setup != nil {
				tt.setup(bb)
			}
			if got := tt.act.PreconditionsHold(ev, bb); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveInputs(t *testing.T) {
	bb := blackboard.New()
	bb.Set("user", "alice")
	bb.AddObject(draft{Text: "d"})

	act := Action{
		Name: "write",
		Inputs: []Input{
			{Name: "user"},
			{Type: blackboard.TypeOf[draft]()},
		},
		Run: noopRun,
	}
	inv, err := act.ResolveInputs(bb)
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}
	if inv.Input("user") != "alice" {
		t.Errorf("named input = %v", inv.Input("user"))
	}
	if inv.Inputs["type:action.draft"].(draft).Text != "d" {
		t.Errorf("typed input = %v", inv.Inputs)
	}

	act.Inputs = append(act.Inputs, Input{Name: "missing"})
	if _, err := act.ResolveInputs(bb); err == nil {
		t.Error("expected error for missing binding")
	}
}

func TestEffectiveCost(t *testing.T) {
	bb := blackboard.New()
	a := Action{Name: "a", Cost: 5, Run: noopRun}
	if got := a.EffectiveCost(bb); got != 5 {
		t.Errorf("static cost = %v", got)
	}
	a.CostFn = func(bb *blackboard.Blackboard) float64 {
		if _, ok := bb.Get("expensive"); ok {
			return 100
		}
		return 1
	}
	if got := a.EffectiveCost(bb); got != 1 {
		t.Errorf("dynamic cost = %v", got)
	}
	bb.Set("expensive", true)
	if got := a.EffectiveCost(bb); got != 100 {
		t.Errorf("dynamic cost = %v", got)
	}
}

func TestGoalSatisfied(t *testing.T) {
	ev := condition.BlackboardEvaluator{}
	bb := blackboard.New()

	byType := Goal{Name: "haveReport", OutputType: blackboard.TypeOf[report]()}
	if got := byType.Satisfied(ev, bb); got != condition.False {
		t.Errorf("empty board: %v", got)
	}
	bb.AddObject(report{Text: "r"})
	if got := byType.Satisfied(ev, bb); got != condition.True {
		t.Errorf("with report: %v", got)
	}

	byCond := Goal{Name: "done", Condition: "finished"}
	if got := byCond.Satisfied(ev, bb); got != condition.Unknown {
		t.Errorf("unset condition: %v", got)
	}
	bb.Set("finished", true)
	if got := byCond.Satisfied(ev, bb); got != condition.True {
		t.Errorf("set condition: %v", got)
	}

	empty := Goal{Name: "empty"}
	if got := empty.Satisfied(ev, bb); got != condition.False {
		t.Errorf("goal with no test: %v", got)
	}
}

func TestNewRegistry(t *testing.T) {
	valid := []Action{
		{Name: "b", Run: noopRun},
		{Name: "a", Run: noopRun, Recovery: "b"},
	}
	reg, err := NewRegistry(valid, []Goal{{Name: "g"}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	got := reg.Actions()
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("Actions() not sorted: %v", got)
	}
	// Unset retry policy defaults to a single attempt.
	a, _ := reg.Action("a")
	if a.Retry.MaxAttempts != 1 {
		t.Errorf("default MaxAttempts = %d", a.Retry.MaxAttempts)
	}

	cases := []struct {
		name    string
		actions []Action
		goals   []Goal
	}{
		{"duplicate action", []Action{{Name: "a", Run: noopRun}, {Name: "a", Run: noopRun}}, nil},
		{"empty name", []Action{{Run: noopRun}}, nil},
		{"nil run", []Action{{Name: "a"}}, nil},
		{"negative attempts", []Action{{Name: "a", Run: noopRun, Retry: RetryPolicy{MaxAttempts: -1}}}, nil},
		{"unknown recovery", []Action{{Name: "a", Run: noopRun, Recovery: "ghost"}}, nil},
		{"duplicate goal", []Action{{Name: "a", Run: noopRun}}, []Goal{{Name: "g"}, {Name: "g"}}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.actions, tt.goals); err == nil {
				t.Error("expected error")
			}
		})
	}
}
