package verify

import (
	"testing"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
	"github.com/plcforge/plcc/internal/ir"
	"github.com/stretchr/testify/require"
)

func TestRunTimingPassesWithinBound(t *testing.T) {
	stroke, response := 200, 20
	devices := []*ast.Device{
		{Name: "cyl_A", Kind: ast.DeviceCylinder, StrokeMs: &stroke, ResponseMs: &response},
	}
	tasks := []*ast.Task{
		{Name: "init", Steps: []*ast.Step{
			{Name: "extend_A", Body: ast.Body{Actions: []ast.Action{{Kind: ast.ActionExtend, Target: "cyl_A"}}}},
		}},
	}
	topo, diags := ir.BuildTopology(devices)
	require.Empty(t, diags)
	model, diags := ir.BuildTimingModel(topo, tasks)
	require.Empty(t, diags)
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)

	rule := ast.TimingRule{
		Scope:    ast.TimingScope{Kind: ast.ScopeTask, Task: "init"},
		Relation: ast.MustCompleteWithin,
		Duration: ast.Duration{Value: 500, Unit: "ms"},
	}
	cs := &ir.ConstraintSet{Timing: []ast.TimingRule{rule}}

	level, diags := RunTiming(topo, model, sm, cs, tasks, diag.LangZH)
	require.Equal(t, TimingPass, level)
	require.Empty(t, diags)
}

func TestRunTimingFailsMustStartAfter(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "init", Steps: []*ast.Step{{Name: "only", Body: ast.Body{
			Timeouts: []ast.Timeout{{Duration: ast.Duration{Value: 100, Unit: "ms"}, Target: "cooldown"}},
		}}}},
		{Name: "cooldown", Steps: []*ast.Step{{Name: "wait"}}},
	}
	topo, _ := ir.BuildTopology(nil)
	model, _ := ir.BuildTimingModel(topo, tasks)
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)

	rule := ast.TimingRule{
		Scope:    ast.TimingScope{Kind: ast.ScopeTask, Task: "cooldown"},
		Relation: ast.MustStartAfter,
		Duration: ast.Duration{Value: 200, Unit: "ms"},
	}
	cs := &ir.ConstraintSet{Timing: []ast.TimingRule{rule}}

	level, diags := RunTiming(topo, model, sm, cs, tasks, diag.LangZH)
	require.Equal(t, TimingFailed, level)
	require.Len(t, diags, 1)
	require.Contains(t, diags[0].Reason, "100ms")
}

func TestRunTimingInitialStateHasZeroDelay(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "init", Steps: []*ast.Step{{Name: "only"}}},
	}
	topo, _ := ir.BuildTopology(nil)
	model, _ := ir.BuildTimingModel(topo, tasks)
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)

	rule := ast.TimingRule{
		Scope:    ast.TimingScope{Kind: ast.ScopeTask, Task: "init"},
		Relation: ast.MustStartAfter,
		Duration: ast.Duration{Value: 0, Unit: "ms"},
	}
	cs := &ir.ConstraintSet{Timing: []ast.TimingRule{rule}}

	level, diags := RunTiming(topo, model, sm, cs, tasks, diag.LangZH)
	require.Equal(t, TimingPass, level)
	require.Empty(t, diags)
}
