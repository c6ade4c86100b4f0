// Package loader reads a .plc source file from disk and converts it into
// the ast.Program the core consumes. The concrete surface grammar is an
// external collaborator per spec.md §1; this loader's own surface is a
// YAML document shaped like the [topology]/[constraints]/[tasks] sections,
// which keeps a real file format in play for `plcc check`/`plcc repl`
// without reimplementing a bespoke DSL grammar the core was never meant to
// own.
package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plcforge/plcc/internal/ast"
)

// Load reads path and converts its YAML document into an ast.Program.
func Load(path string) (*ast.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return doc.toProgram(path), nil
}

// document mirrors ast.Program with string-keyed enums so it round-trips
// through YAML without custom (Un)MarshalYAML methods on the core types.
type document struct {
	Topology    []deviceDoc    `yaml:"topology"`
	Constraints constraintsDoc `yaml:"constraints"`
	Tasks       []taskDoc      `yaml:"tasks"`
}

type quantityDoc struct {
	Value float64 `yaml:"value"`
	Unit  string  `yaml:"unit"`
}

type detectsDoc struct {
	Device string `yaml:"device"`
	State  string `yaml:"state"`
}

type deviceDoc struct {
	Name        string       `yaml:"name"`
	Kind        string       `yaml:"kind"`
	ResponseMs  *int         `yaml:"response_ms"`
	StrokeMs    *int         `yaml:"stroke_ms"`
	RetractMs   *int         `yaml:"retract_ms"`
	RampMs      *int         `yaml:"ramp_ms"`
	Stroke      *quantityDoc `yaml:"stroke"`
	RatedSpeed  *quantityDoc `yaml:"rated_speed"`
	ConnectedTo *string      `yaml:"connected_to"`
	Detects     *detectsDoc  `yaml:"detects"`
	Debounce    *int         `yaml:"debounce_ms"`
	Inverted    bool         `yaml:"inverted"`
	Line        int          `yaml:"line"`
}

type deviceStateDoc struct {
	Device string `yaml:"device"`
	State  string `yaml:"state"`
}

type safetyRuleDoc struct {
	Left     deviceStateDoc `yaml:"left"`
	Relation string         `yaml:"relation"`
	Right    deviceStateDoc `yaml:"right"`
	Reason   string         `yaml:"reason"`
	Line     int            `yaml:"line"`
}

type timingScopeDoc struct {
	Task string `yaml:"task"`
	Step string `yaml:"step"`
}

type durationDoc struct {
	Value float64 `yaml:"value"`
	Unit  string  `yaml:"unit"`
}

type timingRuleDoc struct {
	Scope    timingScopeDoc `yaml:"scope"`
	Relation string         `yaml:"relation"`
	Duration durationDoc    `yaml:"duration"`
	Reason   string         `yaml:"reason"`
	Line     int            `yaml:"line"`
}

type causalityChainDoc struct {
	Devices []string `yaml:"devices"`
	Reason  string   `yaml:"reason"`
	Line    int      `yaml:"line"`
}

type constraintsDoc struct {
	Safety    []safetyRuleDoc     `yaml:"safety"`
	Timing    []timingRuleDoc     `yaml:"timing"`
	Causality []causalityChainDoc `yaml:"causality"`
}

type actionDoc struct {
	Kind    string `yaml:"kind"`
	Target  string `yaml:"target"`
	On      bool   `yaml:"on"`
	Message string `yaml:"message"`
	Line    int    `yaml:"line"`
}

type waitDoc struct {
	Expr string `yaml:"expr"`
	Line int    `yaml:"line"`
}

type gotoDoc struct {
	Target string `yaml:"target"`
	Line   int    `yaml:"line"`
}

type timeoutDoc struct {
	Duration durationDoc `yaml:"duration"`
	Target   string      `yaml:"target"`
	Line     int         `yaml:"line"`
}

type bodyDoc struct {
	Actions  []actionDoc    `yaml:"actions"`
	Waits    []waitDoc      `yaml:"waits"`
	Gotos    []gotoDoc      `yaml:"gotos"`
	Timeouts []timeoutDoc   `yaml:"timeouts"`
	Parallel []parallelDoc  `yaml:"parallel"`
	Race     []raceBlockDoc `yaml:"race"`
}

type branchDoc struct {
	Body bodyDoc `yaml:"body"`
	Line int     `yaml:"line"`
}

type parallelDoc struct {
	Branches []branchDoc `yaml:"branches"`
	Line     int         `yaml:"line"`
}

type raceBranchDoc struct {
	Body bodyDoc `yaml:"body"`
	Then *string `yaml:"then"`
	Line int     `yaml:"line"`
}

type raceBlockDoc struct {
	Branches []raceBranchDoc `yaml:"branches"`
	Line     int             `yaml:"line"`
}

type stepDoc struct {
	Name                string  `yaml:"name"`
	Body                bodyDoc `yaml:"body"`
	AllowIndefiniteWait bool    `yaml:"allow_indefinite_wait"`
	Line                int     `yaml:"line"`
}

type onCompleteDoc struct {
	Kind   string `yaml:"kind"`
	Target string `yaml:"target"`
	Line   int    `yaml:"line"`
}

type taskDoc struct {
	Name       string        `yaml:"name"`
	Steps      []stepDoc     `yaml:"steps"`
	OnComplete onCompleteDoc `yaml:"on_complete"`
	Line       int           `yaml:"line"`
}

func pos(file string, line int) ast.Pos { return ast.Pos{File: file, Line: line} }

func (d document) toProgram(file string) *ast.Program {
	prog := &ast.Program{Constraints: d.Constraints.toAST(file)}
	for _, dev := range d.Topology {
		prog.Topology = append(prog.Topology, dev.toAST(file))
	}
	for _, t := range d.Tasks {
		prog.Tasks = append(prog.Tasks, t.toAST(file))
	}
	return prog
}

func (q *quantityDoc) toAST() *ast.Quantity {
	if q == nil {
		return nil
	}
	return &ast.Quantity{Value: q.Value, Unit: q.Unit}
}

func (dt *detectsDoc) toAST() *ast.DetectsSpec {
	if dt == nil {
		return nil
	}
	return &ast.DetectsSpec{Device: dt.Device, State: dt.State}
}

func (d deviceDoc) toAST(file string) *ast.Device {
	return &ast.Device{
		Name:        d.Name,
		Kind:        ast.DeviceKind(d.Kind),
		ResponseMs:  d.ResponseMs,
		StrokeMs:    d.StrokeMs,
		RetractMs:   d.RetractMs,
		RampMs:      d.RampMs,
		Stroke:      d.Stroke.toAST(),
		RatedSpeed:  d.RatedSpeed.toAST(),
		ConnectedTo: d.ConnectedTo,
		Detects:     d.Detects.toAST(),
		Debounce:    d.Debounce,
		Inverted:    d.Inverted,
		Pos:         pos(file, d.Line),
	}
}

func (c constraintsDoc) toAST(file string) ast.Constraints {
	out := ast.Constraints{}
	for _, r := range c.Safety {
		out.Safety = append(out.Safety, ast.SafetyRule{
			Left:     ast.DeviceState{Device: r.Left.Device, State: r.Left.State},
			Relation: ast.SafetyRelation(r.Relation),
			Right:    ast.DeviceState{Device: r.Right.Device, State: r.Right.State},
			Reason:   r.Reason,
			Pos:      pos(file, r.Line),
		})
	}
	for _, r := range c.Timing {
		out.Timing = append(out.Timing, ast.TimingRule{
			Scope:    timingScope(r.Scope),
			Relation: ast.TimingRelation(r.Relation),
			Duration: ast.Duration{Value: r.Duration.Value, Unit: r.Duration.Unit},
			Reason:   r.Reason,
			Pos:      pos(file, r.Line),
		})
	}
	for _, ch := range c.Causality {
		out.Causality = append(out.Causality, ast.CausalityChain{
			Devices: ch.Devices,
			Reason:  ch.Reason,
			Pos:     pos(file, ch.Line),
		})
	}
	return out
}

func timingScope(s timingScopeDoc) ast.TimingScope {
	if s.Step != "" {
		return ast.TimingScope{Kind: ast.ScopeStep, Task: s.Task, Step: s.Step}
	}
	return ast.TimingScope{Kind: ast.ScopeTask, Task: s.Task}
}

func actionKind(k string) ast.ActionKind {
	switch k {
	case "retract":
		return ast.ActionRetract
	case "set":
		return ast.ActionSet
	case "log":
		return ast.ActionLog
	default:
		return ast.ActionExtend
	}
}

func onCompleteKind(k string) ast.OnCompleteKind {
	switch k {
	case "goto":
		return ast.OnCompleteGoto
	case "unreachable":
		return ast.OnCompleteUnreachable
	default:
		return ast.OnCompleteNone
	}
}

func (b bodyDoc) toAST(file string) ast.Body {
	out := ast.Body{}
	for _, a := range b.Actions {
		out.Actions = append(out.Actions, ast.Action{
			Kind: actionKind(a.Kind), Target: a.Target, On: a.On, Message: a.Message, Pos: pos(file, a.Line),
		})
	}
	for _, w := range b.Waits {
		out.Waits = append(out.Waits, ast.Wait{Expr: w.Expr, Pos: pos(file, w.Line)})
	}
	for _, g := range b.Gotos {
		out.Gotos = append(out.Gotos, ast.Goto{Target: g.Target, Pos: pos(file, g.Line)})
	}
	for _, to := range b.Timeouts {
		out.Timeouts = append(out.Timeouts, ast.Timeout{
			Duration: ast.Duration{Value: to.Duration.Value, Unit: to.Duration.Unit}, Target: to.Target, Pos: pos(file, to.Line),
		})
	}
	for _, p := range b.Parallel {
		var branches []ast.Branch
		for _, br := range p.Branches {
			branches = append(branches, ast.Branch{Body: br.Body.toAST(file), Pos: pos(file, br.Line)})
		}
		out.Parallel = append(out.Parallel, ast.ParallelBlock{Branches: branches, Pos: pos(file, p.Line)})
	}
	for _, r := range b.Race {
		var branches []ast.RaceBranch
		for _, br := range r.Branches {
			branches = append(branches, ast.RaceBranch{Body: br.Body.toAST(file), Then: br.Then, Pos: pos(file, br.Line)})
		}
		out.Race = append(out.Race, ast.RaceBlock{Branches: branches, Pos: pos(file, r.Line)})
	}
	return out
}

func (t taskDoc) toAST(file string) *ast.Task {
	task := &ast.Task{
		Name: t.Name,
		OnComplete: ast.OnComplete{
			Kind: onCompleteKind(t.OnComplete.Kind), Target: t.OnComplete.Target, Pos: pos(file, t.OnComplete.Line),
		},
		Pos: pos(file, t.Line),
	}
	for _, s := range t.Steps {
		task.Steps = append(task.Steps, &ast.Step{
			Name: s.Name, Body: s.Body.toAST(file), AllowIndefiniteWait: s.AllowIndefiniteWait, Pos: pos(file, s.Line),
		})
	}
	return task
}
