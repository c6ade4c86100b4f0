package ir

import (
	"testing"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/stretchr/testify/require"
)

func TestSCCsDetectsCycleBetweenTasks(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "init", Steps: []*ast.Step{{Name: "only"}},
			OnComplete: ast.OnComplete{Kind: ast.OnCompleteGoto, Target: "loop"}},
		{Name: "loop", Steps: []*ast.Step{{Name: "only"}},
			OnComplete: ast.OnComplete{Kind: ast.OnCompleteGoto, Target: "init"}},
	}
	sm, diags := BuildStateMachine(tasks)
	require.Empty(t, diags)

	sccs := sm.SCCs()
	var found bool
	for _, scc := range sccs {
		if len(scc.Members) == 2 {
			found = true
			require.True(t, scc.HasCycle)
			require.Empty(t, scc.OutEdges)
			require.Len(t, scc.Edges, 2, "Edges must still carry the cycle's two internal transitions")
		}
	}
	require.True(t, found, "expected a 2-member cycle between init and loop")
}

// TestSCCsEdgesIncludesInternalTimeoutGuardedEdge covers a cycle whose only
// escape is a timeout edge that loops back into the same component rather
// than leaving it: OutEdges is empty, but Edges must still surface it so
// the liveness verifier's escape check can see it.
func TestSCCsEdgesIncludesInternalTimeoutGuardedEdge(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "a", Steps: []*ast.Step{{Name: "only", Body: ast.Body{
			Gotos: []ast.Goto{{Target: "b"}},
		}}}},
		{Name: "b", Steps: []*ast.Step{{Name: "only", Body: ast.Body{
			Timeouts: []ast.Timeout{{Duration: ast.Duration{Value: 100, Unit: "ms"}, Target: "a"}},
		}}}},
	}
	sm, diags := BuildStateMachine(tasks)
	require.Empty(t, diags)

	sccs := sm.SCCs()
	var found bool
	for _, scc := range sccs {
		if len(scc.Members) != 2 {
			continue
		}
		found = true
		require.True(t, scc.HasCycle)
		require.Empty(t, scc.OutEdges, "both transitions loop back into the same 2-state cycle")
		require.Len(t, scc.Edges, 2)

		var sawTimeout bool
		for _, edge := range scc.Edges {
			if edge.Guard.Kind == GuardTimeout {
				sawTimeout = true
			}
		}
		require.True(t, sawTimeout, "the internal b->a edge is timeout-guarded and must appear in Edges")
	}
	require.True(t, found, "expected a 2-member cycle between a and b")
}

func TestSCCsSingleStateNoCycle(t *testing.T) {
	tasks := []*ast.Task{
		{Name: "t", Steps: []*ast.Step{{Name: "a"}, {Name: "b"}}},
	}
	sm, diags := BuildStateMachine(tasks)
	require.Empty(t, diags)
	sccs := sm.SCCs()
	for _, scc := range sccs {
		require.False(t, scc.HasCycle)
	}
}
