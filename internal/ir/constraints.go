package ir

import (
	"fmt"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
)

// SafetyRule, TimingRule, CausalityChain mirror the AST shapes once
// cross-validated against the topology and task sections.
type SafetyRule = ast.SafetyRule
type TimingRule = ast.TimingRule
type CausalityChain = ast.CausalityChain

// ConstraintSet is the validated [constraints] section (§3.1, §4.2).
type ConstraintSet struct {
	Safety    []SafetyRule
	Timing    []TimingRule
	Causality []CausalityChain
}

// DefaultStateVocabulary returns the default state domain for a device kind
// (§3.1, §4.2): {extended, retracted} for cylinders, {on, off} otherwise.
func DefaultStateVocabulary(kind ast.DeviceKind) []string {
	if kind == ast.DeviceCylinder {
		return []string{"extended", "retracted"}
	}
	return []string{"on", "off"}
}

// DefaultState returns a device kind's default (rest) state.
func DefaultState(kind ast.DeviceKind) string {
	if kind == ast.DeviceCylinder {
		return "retracted"
	}
	return "off"
}

// DeviceStateVocabulary exposes stateVocabulary for the safety verifier's
// device-domain construction (§4.5.1), which needs the same detects-extended
// vocabulary the constraint-set builder validates against.
func DeviceStateVocabulary(topo *TopologyGraph, name string) (map[string]bool, bool) {
	return stateVocabulary(topo, name)
}

// stateVocabulary builds the known-states table for a single device: its
// kind's default vocabulary, extended with every state named in a `detects`
// attribute that targets it (§4.2).
func stateVocabulary(topo *TopologyGraph, name string) (map[string]bool, bool) {
	dev, ok := topo.Device(name)
	if !ok {
		return nil, false
	}
	vocab := make(map[string]bool)
	for _, s := range DefaultStateVocabulary(dev.Kind) {
		vocab[s] = true
	}
	for _, d := range topo.Devices {
		if d.Detects != nil && d.Detects.Device == name {
			vocab[d.Detects.State] = true
		}
	}
	return vocab, true
}

type taskIndex struct {
	byName map[string]*ast.Task
	steps  map[string]map[string]bool
}

func indexTasks(tasks []*ast.Task) taskIndex {
	idx := taskIndex{byName: make(map[string]*ast.Task), steps: make(map[string]map[string]bool)}
	for _, t := range tasks {
		idx.byName[t.Name] = t
		steps := make(map[string]bool)
		for _, s := range t.Steps {
			steps[s.Name] = true
		}
		idx.steps[t.Name] = steps
	}
	return idx
}

// BuildConstraints validates the [constraints] section against the topology
// and tasks sections (§4.2).
func BuildConstraints(topo *TopologyGraph, constraints ast.Constraints, tasks []*ast.Task) (*ConstraintSet, []*diag.Diagnostic) {
	bag := diag.NewBag(diag.StageConstraints)
	idx := indexTasks(tasks)
	out := &ConstraintSet{}

	for _, rule := range constraints.Safety {
		leftOK := validateDeviceState(topo, bag, rule.Left, rule.Pos)
		rightOK := validateDeviceState(topo, bag, rule.Right, rule.Pos)
		if leftOK && rightOK {
			out.Safety = append(out.Safety, rule)
		}
	}

	for _, rule := range constraints.Timing {
		if validateTimingScope(idx, bag, rule.Scope, rule.Pos) {
			out.Timing = append(out.Timing, rule)
		}
	}

	for _, chain := range constraints.Causality {
		if validateCausalityChain(topo, bag, chain) {
			out.Causality = append(out.Causality, chain)
		}
	}

	return out, bag.Items()
}

func validateDeviceState(topo *TopologyGraph, bag *diag.Bag, ds ast.DeviceState, pos ast.Pos) bool {
	vocab, ok := stateVocabulary(topo, ds.Device)
	if !ok {
		bag.Errorf(diag.CheckerUndefinedReference, toPosition(pos), "undefined-device",
			fmt.Sprintf("safety rule references undefined device %q", ds.Device),
			nil, "declare the device in [topology] or fix the typo")
		return false
	}
	if !vocab[ds.State] {
		bag.Errorf(diag.CheckerUndefinedReference, toPosition(pos), "undefined-state",
			fmt.Sprintf("device %q has no state %q", ds.Device, ds.State),
			nil, "use one of the device's declared or default states")
		return false
	}
	return true
}

func validateTimingScope(idx taskIndex, bag *diag.Bag, scope ast.TimingScope, pos ast.Pos) bool {
	task, ok := idx.byName[scope.Task]
	if !ok {
		bag.Errorf(diag.CheckerUndefinedReference, toPosition(pos), "undefined-task",
			fmt.Sprintf("timing rule references undefined task %q", scope.Task),
			nil, "declare the task in [tasks] or fix the typo")
		return false
	}
	_ = task
	if scope.Kind == ast.ScopeStep {
		if !idx.steps[scope.Task][scope.Step] {
			bag.Errorf(diag.CheckerUndefinedReference, toPosition(pos), "undefined-step",
				fmt.Sprintf("timing rule references undefined step %q in task %q", scope.Step, scope.Task),
				nil, "declare the step in the named task or fix the typo")
			return false
		}
	}
	return true
}

func validateCausalityChain(topo *TopologyGraph, bag *diag.Bag, chain ast.CausalityChain) bool {
	if len(chain.Devices) < 2 {
		bag.Errorf(diag.CheckerSemantic, toPosition(chain.Pos), "causality-chain-too-short",
			"causality chain must name at least two devices",
			nil, "add the missing upstream or downstream device")
		return false
	}
	ok := true
	for _, name := range chain.Devices {
		if _, exists := topo.Device(name); !exists {
			bag.Errorf(diag.CheckerUndefinedReference, toPosition(chain.Pos), "undefined-device",
				fmt.Sprintf("causality chain references undefined device %q", name),
				nil, "declare the device in [topology] or fix the typo")
			ok = false
		}
	}
	return ok
}

func toPosition(p ast.Pos) diag.Position {
	return diag.Position{File: p.File, Line: p.Line}
}
