package pipeline

import (
	"testing"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
	"github.com/plcforge/plcc/internal/verify"
	"github.com/stretchr/testify/require"
)

func TestRunProducesAllArtifactsAndPassingSummary(t *testing.T) {
	stroke, response := 200, 20
	prog := &ast.Program{
		Topology: []*ast.Device{
			{Name: "cyl_A", Kind: ast.DeviceCylinder, StrokeMs: &stroke, ResponseMs: &response},
		},
		Tasks: []*ast.Task{
			{Name: "init", Steps: []*ast.Step{
				{Name: "extend_A", Body: ast.Body{Actions: []ast.Action{{Kind: ast.ActionExtend, Target: "cyl_A"}}}},
			}},
		},
	}

	result := Run(Config{Language: diag.LangZH}, Source{Program: prog, Filename: "s.plc"})

	require.NotNil(t, result.Topology)
	require.NotNil(t, result.Constraints)
	require.NotNil(t, result.StateMachine)
	require.NotNil(t, result.TimingModel)
	require.Empty(t, result.Diagnostics)

	require.Equal(t, verify.SafetyComplete, result.Summary.Safety.Level)
	require.Equal(t, verify.LivenessPass, result.Summary.Liveness)
	require.Equal(t, verify.TimingPass, result.Summary.Timing)
	require.Equal(t, verify.CausalityPass, result.Summary.Causality)

	for _, phase := range []string{"topology", "constraints", "state_machine", "timing_model", "safety", "liveness", "timing_verify", "causality"} {
		if _, ok := result.PhaseTimings[phase]; !ok {
			t.Errorf("missing phase timing for %q", phase)
		}
	}
}

func TestRunStillVerifiesAfterAnUndefinedReferenceIsDropped(t *testing.T) {
	badTarget := "valve_missing"
	prog := &ast.Program{
		Topology: []*ast.Device{
			{Name: "valve_A", Kind: ast.DeviceSolenoidValve, ConnectedTo: &badTarget},
		},
		Tasks: []*ast.Task{
			{Name: "init", Steps: []*ast.Step{{Name: "only"}}},
		},
	}

	result := Run(Config{Language: diag.LangZH}, Source{Program: prog, Filename: "s.plc"})

	// Every IR builder is total: the bad connected_to reference is diagnosed
	// and dropped, but a full TopologyGraph (minus that edge) still flows to
	// every downstream stage, which all still run.
	require.NotNil(t, result.Topology)
	require.NotNil(t, result.Constraints)
	require.NotNil(t, result.StateMachine)
	require.NotNil(t, result.TimingModel)

	require.Len(t, result.Diagnostics, 1)
	require.Equal(t, diag.CheckerUndefinedReference, result.Diagnostics[0].Checker)

	require.Equal(t, verify.SafetyComplete, result.Summary.Safety.Level)
	require.Equal(t, verify.LivenessPass, result.Summary.Liveness)
	require.Equal(t, verify.TimingPass, result.Summary.Timing)
	require.Equal(t, verify.CausalityPass, result.Summary.Causality)
}

func TestRunReportsTimingViolationDiagnostic(t *testing.T) {
	stroke, response := 600, 0
	prog := &ast.Program{
		Topology: []*ast.Device{
			{Name: "cyl_A", Kind: ast.DeviceCylinder, StrokeMs: &stroke, ResponseMs: &response},
		},
		Tasks: []*ast.Task{
			{Name: "init", Steps: []*ast.Step{
				{Name: "extend_A", Body: ast.Body{Actions: []ast.Action{{Kind: ast.ActionExtend, Target: "cyl_A"}}}},
			}},
		},
		Constraints: ast.Constraints{
			Timing: []ast.TimingRule{{
				Scope:    ast.TimingScope{Kind: ast.ScopeTask, Task: "init"},
				Relation: ast.MustCompleteWithin,
				Duration: ast.Duration{Value: 100, Unit: "ms"},
			}},
		},
	}

	result := Run(Config{Language: diag.LangZH}, Source{Program: prog, Filename: "s.plc"})

	require.Len(t, result.Diagnostics, 1)
	require.Equal(t, diag.CheckerTiming, result.Diagnostics[0].Checker)
	require.Equal(t, verify.TimingFailed, result.Summary.Timing)
}
