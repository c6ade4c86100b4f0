package verify

import (
	"testing"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
	"github.com/plcforge/plcc/internal/ir"
	"github.com/stretchr/testify/require"
)

func TestRunLivenessWaitWithoutEscape(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "t", Steps: []*ast.Step{
			{Name: "s", Body: ast.Body{Waits: []ast.Wait{{Expr: "sensor == true"}}}},
		}},
	}
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)

	level, diags := RunLiveness(tasks, sm, diag.LangZH)
	require.Equal(t, LivenessFailed, level)
	require.NotEmpty(t, diags)
	var found bool
	for _, d := range diags {
		if d.Checker == "liveness" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunLivenessAllowIndefiniteWaitSuppressesEscape(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "t", Steps: []*ast.Step{
			{Name: "s", AllowIndefiniteWait: true, Body: ast.Body{Waits: []ast.Wait{{Expr: "operator_ack"}}}},
		}},
	}
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)
	level, diags := RunLiveness(tasks, sm, diag.LangZH)
	require.Equal(t, LivenessPass, level)
	require.Empty(t, diags)
}

func TestRunLivenessSCCWithoutEscape(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "init", Steps: []*ast.Step{{Name: "only"}},
			OnComplete: ast.OnComplete{Kind: ast.OnCompleteGoto, Target: "loop"}},
		{Name: "loop", Steps: []*ast.Step{{Name: "only"}},
			OnComplete: ast.OnComplete{Kind: ast.OnCompleteGoto, Target: "init"}},
	}
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)

	level, diags := RunLiveness(tasks, sm, diag.LangZH)
	require.Equal(t, LivenessFailed, level)
	var sawSCC bool
	for _, d := range diags {
		if d.Title == diag.Title(diag.LangZH, "scc-without-escape") {
			sawSCC = true
		}
	}
	require.True(t, sawSCC)
}

func TestRunLivenessSCCEscapesViaTimeout(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "A", Steps: []*ast.Step{{Name: "a", Body: ast.Body{
			Gotos:    []ast.Goto{{Target: "A"}},
			Timeouts: []ast.Timeout{{Duration: ast.Duration{Value: 100, Unit: "ms"}, Target: "out"}},
		}}}},
		{Name: "out", Steps: []*ast.Step{{Name: "done"}}},
	}
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)
	level, diags := RunLiveness(tasks, sm, diag.LangZH)
	require.Equal(t, LivenessPass, level)
	require.Empty(t, diags)
}

// TestRunLivenessSCCEscapesViaInternalTimeoutEdge covers a 2-state cycle
// whose only edges both stay inside the SCC (a->b unconditional, b->a
// timeout-guarded): OutEdges is empty, but the timeout-guarded edge still
// gets the cycle unstuck, so this must not be flagged.
func TestRunLivenessSCCEscapesViaInternalTimeoutEdge(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "a", Steps: []*ast.Step{{Name: "only", Body: ast.Body{
			Gotos: []ast.Goto{{Target: "b"}},
		}}}},
		{Name: "b", Steps: []*ast.Step{{Name: "only", Body: ast.Body{
			Timeouts: []ast.Timeout{{Duration: ast.Duration{Value: 100, Unit: "ms"}, Target: "a"}},
		}}}},
	}
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)
	level, diags := RunLiveness(tasks, sm, diag.LangZH)
	require.Equal(t, LivenessPass, level)
	require.Empty(t, diags)
}

func TestRunLivenessUnreachableCompletionActuallyReachable(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "t", Steps: []*ast.Step{
			{Name: "s", Body: ast.Body{Waits: []ast.Wait{{Expr: "done_flag"}}}},
		}, OnComplete: ast.OnComplete{Kind: ast.OnCompleteUnreachable}},
	}
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)
	level, diags := RunLiveness(tasks, sm, diag.LangZH)
	require.Equal(t, LivenessFailed, level)
	var sawUnreachable bool
	for _, d := range diags {
		if d.Title == diag.Title(diag.LangZH, "unreachable-completion") {
			sawUnreachable = true
		}
	}
	require.True(t, sawUnreachable)
}

func TestRunLivenessDanglingTerminalExemptWithoutOnComplete(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "t", Steps: []*ast.Step{{Name: "s", Body: ast.Body{
			Actions: []ast.Action{{Kind: ast.ActionLog, Message: "done"}},
		}}}},
	}
	sm, diags := ir.BuildStateMachine(tasks)
	require.Empty(t, diags)
	level, diags := RunLiveness(tasks, sm, diag.LangZH)
	require.Equal(t, LivenessPass, level)
	require.Empty(t, diags)
}
