package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/stretchr/testify/require"
)

const sample = `
topology:
  - name: Y0
    kind: digital_output
    line: 2
  - name: valve_A
    kind: solenoid_valve
    connected_to: Y0
    line: 3
  - name: cyl_A
    kind: cylinder
    connected_to: valve_A
    stroke_ms: 200
    response_ms: 20
    line: 4
  - name: sensor_A_ext
    kind: sensor
    detects:
      device: cyl_A
      state: extended
    line: 5

constraints:
  timing:
    - scope: {task: init}
      relation: must_complete_within
      duration: {value: 500, unit: ms}
      line: 10

tasks:
  - name: init
    line: 20
    steps:
      - name: extend_A
        line: 21
        body:
          actions:
            - {kind: extend, target: cyl_A, line: 22}
          waits:
            - {expr: "sensor_A_ext == true", line: 23}
`

func TestLoadParsesDevicesConstraintsAndTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1.plc")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	prog, err := Load(path)
	require.NoError(t, err)

	require.Len(t, prog.Topology, 4)
	require.Equal(t, "valve_A", prog.Topology[1].Name)
	require.Equal(t, ast.DeviceSolenoidValve, prog.Topology[1].Kind)
	require.NotNil(t, prog.Topology[1].ConnectedTo)
	require.Equal(t, "Y0", *prog.Topology[1].ConnectedTo)
	require.NotNil(t, prog.Topology[2].StrokeMs)
	require.Equal(t, 200, *prog.Topology[2].StrokeMs)
	require.NotNil(t, prog.Topology[3].Detects)
	require.Equal(t, "cyl_A", prog.Topology[3].Detects.Device)

	require.Len(t, prog.Constraints.Timing, 1)
	require.Equal(t, ast.MustCompleteWithin, prog.Constraints.Timing[0].Relation)
	require.Equal(t, ast.ScopeTask, prog.Constraints.Timing[0].Scope.Kind)
	require.Equal(t, 500.0, prog.Constraints.Timing[0].Duration.Value)

	require.Len(t, prog.Tasks, 1)
	require.Equal(t, "init", prog.Tasks[0].Name)
	require.Len(t, prog.Tasks[0].Steps, 1)
	require.Equal(t, ast.ActionExtend, prog.Tasks[0].Steps[0].Body.Actions[0].Kind)
	require.Equal(t, "cyl_A", prog.Tasks[0].Steps[0].Body.Actions[0].Target)
	require.Equal(t, path, prog.Tasks[0].Pos.File)
	require.Equal(t, 20, prog.Tasks[0].Pos.Line)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.plc"))
	require.Error(t, err)
}
