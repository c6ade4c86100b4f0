// Package verify implements the four independent verification engines that
// run over the lowered IR: safety (bounded model checking), liveness,
// timing, and causality. Each verifier is a pure function of its IR inputs;
// none shares mutable state with another (§5).
package verify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
	"github.com/plcforge/plcc/internal/ir"
)

// SafetyLevel is the verdict a Safety run reaches.
type SafetyLevel int

const (
	SafetyComplete SafetyLevel = iota
	SafetyBounded
	SafetyFailed
)

func (l SafetyLevel) String() string {
	switch l {
	case SafetyComplete:
		return "Complete"
	case SafetyBounded:
		return "Bounded"
	default:
		return "Failed"
	}
}

// SafetyReport is the Safety verifier's non-diagnostic output (§6).
type SafetyReport struct {
	Level         SafetyLevel
	ExploredDepth int
	Warnings      []string
}

// SafetyConfig is the configuration surface the Safety verifier consumes
// (§6): an optional override for the computed BFS depth target.
type SafetyConfig struct {
	BMCMaxDepth *int
}

// deviceDomain is one device's finite state domain (§4.5.1).
type deviceDomain struct {
	name       string
	states     []string
	index      map[string]int
	defaultIdx int
}

func (d deviceDomain) idxOf(state string) (int, bool) {
	i, ok := d.index[state]
	return i, ok
}

// concreteState is a node of the product search graph: a control state plus
// one state index per device, in topology declaration order.
type concreteState struct {
	control ir.State
	devIdx  []int
}

func (c concreteState) key() string {
	var b strings.Builder
	b.WriteString(c.control.Task)
	b.WriteByte('\x00')
	b.WriteString(c.control.Step)
	for _, i := range c.devIdx {
		fmt.Fprintf(&b, "\x00%d", i)
	}
	return b.String()
}

// modelEdge is one edge of the BFS search graph: a state-machine transition
// (or a synthetic self-loop) annotated with its effect map.
type modelEdge struct {
	from, to ir.State
	label    string
	effects  map[string]int // device name -> new state index
}

type safetyModel struct {
	domains    map[string]*deviceDomain
	devOrder   []string
	sm         *ir.StateMachine
	edgesBy    map[ir.State][]*modelEdge
	defaultCS  concreteState
	sccMembers map[ir.State]*ir.SCC
}

func buildDomains(topo *ir.TopologyGraph) map[string]*deviceDomain {
	domains := make(map[string]*deviceDomain)
	for _, dev := range topo.Devices {
		vocab, _ := ir.DeviceStateVocabulary(topo, dev.Name)
		def := ir.DefaultState(dev.Kind)
		ordered := orderedVocabulary(dev.Kind, vocab)
		dd := &deviceDomain{name: dev.Name, states: ordered, index: make(map[string]int)}
		for i, s := range ordered {
			dd.index[s] = i
			if s == def {
				dd.defaultIdx = i
			}
		}
		domains[dev.Name] = dd
	}
	return domains
}

// orderedVocabulary renders a device's state domain deterministically: the
// two-element default vocabulary first, then any detects-derived extra
// states in sorted order.
func orderedVocabulary(kind ast.DeviceKind, vocab map[string]bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range ir.DefaultStateVocabulary(kind) {
		out = append(out, s)
		seen[s] = true
	}
	var extra []string
	for s := range vocab {
		if !seen[s] {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func effectMapFor(domains map[string]*deviceDomain, actions []ast.Action) map[string]int {
	effects := make(map[string]int)
	for _, a := range actions {
		dd, ok := domains[a.Target]
		if !ok {
			continue
		}
		var target string
		switch a.Kind {
		case ast.ActionExtend:
			target = "extended"
		case ast.ActionRetract:
			target = "retracted"
		case ast.ActionSet:
			if a.On {
				target = "on"
			} else {
				target = "off"
			}
		default:
			continue // log: no effect
		}
		if idx, ok := dd.idxOf(target); ok {
			effects[a.Target] = idx
		}
	}
	return effects
}

func guardLabel(g ir.Guard, actions []ast.Action) string {
	var parts []string
	for _, a := range actions {
		parts = append(parts, actionLabel(a))
	}
	if len(parts) == 0 {
		return g.String()
	}
	return g.String() + ": " + strings.Join(parts, ", ")
}

func actionLabel(a ast.Action) string {
	switch a.Kind {
	case ast.ActionExtend:
		return fmt.Sprintf("extend(%s)", a.Target)
	case ast.ActionRetract:
		return fmt.Sprintf("retract(%s)", a.Target)
	case ast.ActionSet:
		if a.On {
			return fmt.Sprintf("set(%s, on)", a.Target)
		}
		return fmt.Sprintf("set(%s, off)", a.Target)
	default:
		return fmt.Sprintf("log(%q)", a.Message)
	}
}

// buildSafetyModel constructs the BFS search graph from the state machine
// and topology (§4.5.1): per-transition effect maps, synthetic self-loops on
// dead ends, and the parallel-join effect-union rewrite.
func buildSafetyModel(topo *ir.TopologyGraph, sm *ir.StateMachine) *safetyModel {
	domains := buildDomains(topo)
	var devOrder []string
	devIdx0 := make([]int, 0, len(topo.Devices))
	for _, dev := range topo.Devices {
		devOrder = append(devOrder, dev.Name)
		devIdx0 = append(devIdx0, domains[dev.Name].defaultIdx)
	}

	m := &safetyModel{
		domains:  domains,
		devOrder: devOrder,
		sm:       sm,
		edgesBy:  make(map[ir.State][]*modelEdge),
		defaultCS: concreteState{
			control: sm.Initial,
			devIdx:  devIdx0,
		},
	}

	for _, t := range sm.Transitions {
		e := &modelEdge{
			from:    t.From,
			to:      t.To,
			label:   guardLabel(t.Guard, t.Actions),
			effects: effectMapFor(domains, t.Actions),
		}
		m.edgesBy[t.From] = append(m.edgesBy[t.From], e)
	}

	for _, s := range sm.States {
		if len(m.edgesBy[s]) == 0 {
			m.edgesBy[s] = append(m.edgesBy[s], &modelEdge{
				from: s, to: s, label: "无出边，保持当前状态", effects: map[string]int{},
			})
		}
	}

	m.rewriteParallelJoins()
	return m
}

// rewriteParallelJoins implements §4.5.1's join-effect-union step: every
// edge entering a synthesized join state from a branch is given the union
// of effects along all branches entering that join, so that arriving at the
// join by any single branch path already reflects every branch's actions —
// modeling the rendezvous semantics of parallel composition.
func (m *safetyModel) rewriteParallelJoins() {
	incoming := make(map[ir.State][]*modelEdge)
	for _, edges := range m.edgesBy {
		for _, e := range edges {
			if e.to.IsParallelJoin() {
				incoming[e.to] = append(incoming[e.to], e)
			}
		}
	}
	for _, edges := range incoming {
		union := make(map[string]int)
		for _, e := range edges {
			for dev, idx := range e.effects {
				union[dev] = idx
			}
		}
		for _, e := range edges {
			e.effects = union
		}
	}
}

func (m *safetyModel) successors(cs concreteState) []struct {
	next concreteState
	e    *modelEdge
} {
	var out []struct {
		next concreteState
		e    *modelEdge
	}
	for _, e := range m.edgesBy[cs.control] {
		devIdx := make([]int, len(cs.devIdx))
		copy(devIdx, cs.devIdx)
		for dev, idx := range e.effects {
			for i, name := range m.devOrder {
				if name == dev {
					devIdx[i] = idx
				}
			}
		}
		out = append(out, struct {
			next concreteState
			e    *modelEdge
		}{concreteState{control: e.to, devIdx: devIdx}, e})
	}
	return out
}

func (m *safetyModel) holds(cs concreteState, ds ast.DeviceState) bool {
	dd, ok := m.domains[ds.Device]
	if !ok {
		return false
	}
	want, ok := dd.idxOf(ds.State)
	if !ok {
		return false
	}
	for i, name := range m.devOrder {
		if name == ds.Device {
			return cs.devIdx[i] == want
		}
	}
	return false
}

func (m *safetyModel) deviceStateName(cs concreteState, name string) string {
	for i, n := range m.devOrder {
		if n == name {
			dd := m.domains[name]
			for s, idx := range dd.index {
				if idx == cs.devIdx[i] {
					return s
				}
			}
		}
	}
	return "?"
}

// SafetyDepthTarget computes §4.5.2's exploration depth target and, if the
// configured limit is smaller, reports which floor was binding.
func SafetyDepthTarget(sm *ir.StateMachine, cfg SafetyConfig) (target int, warning string) {
	stateFloor := len(sm.States)
	sccFloor := 0
	for _, scc := range sm.SCCs() {
		if len(scc.Members)+1 > sccFloor {
			sccFloor = len(scc.Members) + 1
		}
	}
	target = stateFloor
	binding := "state-count"
	if sccFloor > target {
		target = sccFloor
		binding = "SCC"
	}
	if cfg.BMCMaxDepth != nil && *cfg.BMCMaxDepth < target {
		warning = fmt.Sprintf("bmc_max_depth=%d is smaller than the computed target %d (%s floor binding); search will be bounded", *cfg.BMCMaxDepth, target, binding)
		target = *cfg.BMCMaxDepth
	}
	return target, warning
}

type searchNode struct {
	cs     concreteState
	depth  int
	parent *searchNode
	via    *modelEdge
}

// searchRule runs a single BFS per §4.5.3 and returns a counterexample
// (nil if none found within depth) plus whether the search was fully
// explored (no truncated frontier).
func (m *safetyModel) searchRule(rule ast.SafetyRule, depth int) (cex *searchNode, fullyExplored bool) {
	visited := map[string]bool{m.defaultCS.key(): true}
	start := &searchNode{cs: m.defaultCS, depth: 0}
	queue := []*searchNode{start}
	fullyExplored = true

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if m.holds(n.cs, rule.Left) && m.holds(n.cs, rule.Right) {
			return n, true
		}

		if n.depth >= depth {
			for _, s := range m.successors(n.cs) {
				if !visited[s.next.key()] {
					fullyExplored = false
				}
			}
			continue
		}

		for _, s := range m.successors(n.cs) {
			if visited[s.next.key()] {
				continue
			}
			visited[s.next.key()] = true
			queue = append(queue, &searchNode{cs: s.next, depth: n.depth + 1, parent: n, via: s.e})
		}
	}
	return nil, fullyExplored
}

// counterexampleLines renders a found counterexample path per §4.5.4.
func (m *safetyModel) counterexampleLines(n *searchNode, rule ast.SafetyRule) []string {
	var path []*searchNode
	for cur := n; cur != nil; cur = cur.parent {
		path = append([]*searchNode{cur}, path...)
	}
	var lines []string
	lines = append(lines, fmt.Sprintf("初始状态 %s", path[0].cs.control.String()))
	for i := 1; i < len(path); i++ {
		lines = append(lines, fmt.Sprintf("%s --[%s]--> %s", path[i].parent.cs.control.String(), path[i].via.label, path[i].cs.control.String()))
	}
	last := path[len(path)-1]
	lines = append(lines, fmt.Sprintf("在 %s 检测到冲突：%s.%s 与 %s.%s 同时为真",
		last.cs.control.String(), rule.Left.Device, rule.Left.State, rule.Right.Device, rule.Right.State))
	return lines
}

// RunSafety checks every conflicts_with rule by bounded model checking over
// the product of control state and device state (§4.5).
func RunSafety(topo *ir.TopologyGraph, constraints *ir.ConstraintSet, sm *ir.StateMachine, cfg SafetyConfig, lang diag.Language) (*SafetyReport, []*diag.Diagnostic) {
	bag := diag.NewBag(diag.StageSafety)
	report := &SafetyReport{Level: SafetyComplete}

	if len(sm.States) == 0 {
		return report, bag.Items()
	}

	model := buildSafetyModel(topo, sm)
	depth, depthWarning := SafetyDepthTarget(sm, cfg)
	report.ExploredDepth = depth
	if depthWarning != "" {
		report.Warnings = append(report.Warnings, depthWarning)
	}

	allComplete := depthWarning == ""
	anyFailed := false

	for _, rule := range constraints.Safety {
		if rule.Relation != ast.ConflictsWith {
			continue
		}
		cex, fullyExplored := model.searchRule(rule, depth)
		if cex != nil {
			anyFailed = true
			lines := model.counterexampleLines(cex, rule)
			last := lines[len(lines)-1]
			details := lines[:len(lines)-1]
			bag.Errorf(diag.CheckerSafety, toPosition(rule.Pos), diag.Title(lang, "state-mutex-violation"),
				last, details,
				fmt.Sprintf("add an interlock or guard preventing %s.%s and %s.%s from holding simultaneously",
					rule.Left.Device, rule.Left.State, rule.Right.Device, rule.Right.State))
			continue
		}
		if !fullyExplored {
			allComplete = false
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"rule %s.%s conflicts_with %s.%s: search bounded at depth %d, not fully explored",
				rule.Left.Device, rule.Left.State, rule.Right.Device, rule.Right.State, depth))
		}
	}

	switch {
	case anyFailed:
		report.Level = SafetyFailed
	case allComplete:
		report.Level = SafetyComplete
	default:
		report.Level = SafetyBounded
	}

	return report, bag.Items()
}

func toPosition(p ast.Pos) diag.Position {
	return diag.Position{File: p.File, Line: p.Line}
}
