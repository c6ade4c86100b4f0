package verify

import (
	"testing"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
	"github.com/plcforge/plcc/internal/ir"
	"github.com/stretchr/testify/require"
)

func buildModelFixture(t *testing.T, devices []*ast.Device, tasks []*ast.Task, safetyRules []ast.SafetyRule) (*ir.TopologyGraph, *ir.ConstraintSet, *ir.StateMachine) {
	t.Helper()
	topo, diags := ir.BuildTopology(devices)
	require.Empty(t, diags)
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)
	cs, diags := ir.BuildConstraints(topo, ast.Constraints{Safety: safetyRules}, tasks)
	require.Empty(t, diags)
	return topo, cs, sm
}

func TestRunSafetyDetectsParallelJoinConflict(t *testing.T) {
	devices := []*ast.Device{
		{Name: "cyl_A", Kind: ast.DeviceCylinder},
		{Name: "cyl_B", Kind: ast.DeviceCylinder},
	}
	tasks := []*ast.Task{
		{Name: "t", Steps: []*ast.Step{
			{Name: "start", Body: ast.Body{
				Parallel: []ast.ParallelBlock{{
					Branches: []ast.Branch{
						{Body: ast.Body{Actions: []ast.Action{{Kind: ast.ActionExtend, Target: "cyl_A"}}}},
						{Body: ast.Body{Actions: []ast.Action{{Kind: ast.ActionExtend, Target: "cyl_B"}}}},
					},
				}},
			}},
			{Name: "done"},
		}},
	}
	rules := []ast.SafetyRule{
		{Left: ast.DeviceState{Device: "cyl_A", State: "extended"}, Relation: ast.ConflictsWith,
			Right: ast.DeviceState{Device: "cyl_B", State: "extended"}, Pos: ast.Pos{Line: 5}},
	}
	topo, cs, sm := buildModelFixture(t, devices, tasks, rules)

	report, diags := RunSafety(topo, cs, sm, SafetyConfig{}, diag.LangZH)
	require.Len(t, diags, 1)
	require.Equal(t, "safety", diags[0].Checker)
	require.Equal(t, SafetyFailed, report.Level)
	require.NotEmpty(t, diags[0].Details)
	require.Contains(t, diags[0].Details[0], "初始状态")
	require.Contains(t, diags[0].Reason, "join")
}

func TestRunSafetyCompleteWhenNoConflictReachable(t *testing.T) {
	devices := []*ast.Device{
		{Name: "cyl_A", Kind: ast.DeviceCylinder},
	}
	tasks := []*ast.Task{
		{Name: "t", Steps: []*ast.Step{
			{Name: "extend_A", Body: ast.Body{Actions: []ast.Action{{Kind: ast.ActionExtend, Target: "cyl_A"}}}},
		}},
	}
	rules := []ast.SafetyRule{
		{Left: ast.DeviceState{Device: "cyl_A", State: "extended"}, Relation: ast.ConflictsWith,
			Right: ast.DeviceState{Device: "cyl_A", State: "retracted"}},
	}
	topo, cs, sm := buildModelFixture(t, devices, tasks, rules)

	report, diags := RunSafety(topo, cs, sm, SafetyConfig{}, diag.LangZH)
	require.Empty(t, diags)
	require.Equal(t, SafetyComplete, report.Level)
}

func TestRunSafetyBoundedWarnsWhenUserLimitBinds(t *testing.T) {
	devices := []*ast.Device{{Name: "cyl_A", Kind: ast.DeviceCylinder}}
	tasks := []*ast.Task{
		{Name: "t", Steps: []*ast.Step{{Name: "only", Body: ast.Body{
			Actions: []ast.Action{{Kind: ast.ActionExtend, Target: "cyl_A"}},
		}}}},
	}
	topo, cs, sm := buildModelFixture(t, devices, tasks, nil)

	zero := 0
	report, diags := RunSafety(topo, cs, sm, SafetyConfig{BMCMaxDepth: &zero}, diag.LangZH)
	require.Empty(t, diags)
	require.Equal(t, SafetyBounded, report.Level)
	require.NotEmpty(t, report.Warnings)
}

func TestSafetyDepthTargetUsesSCCFloor(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "init", Steps: []*ast.Step{{Name: "only"}},
			OnComplete: ast.OnComplete{Kind: ast.OnCompleteGoto, Target: "loop"}},
		{Name: "loop", Steps: []*ast.Step{{Name: "only"}},
			OnComplete: ast.OnComplete{Kind: ast.OnCompleteGoto, Target: "init"}},
	}
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)
	target, warning := SafetyDepthTarget(sm, SafetyConfig{})
	require.Empty(t, warning)
	require.GreaterOrEqual(t, target, 3) // 2-member SCC + 1
}
