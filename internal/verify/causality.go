package verify

import (
	"fmt"
	"strings"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
	"github.com/plcforge/plcc/internal/ir"
)

// CausalityLevel is the verdict a Causality run reaches.
type CausalityLevel int

const (
	CausalityPass CausalityLevel = iota
	CausalityFailed
)

func (l CausalityLevel) String() string {
	if l == CausalityPass {
		return "Pass"
	}
	return "Failed"
}

// runtimeGraph fuses the declared topology with detects back-edges (§4.8.1):
// for every device D with `detects: X.<state>`, an additional edge X -> D is
// added so that action-to-sensor reachability becomes a single path query.
type runtimeGraph struct {
	adj map[string][]string
}

func buildRuntimeGraph(topo *ir.TopologyGraph) *runtimeGraph {
	g := &runtimeGraph{adj: make(map[string][]string)}
	for _, dev := range topo.Devices {
		g.adj[dev.Name] = nil // register every node even if edge-free
	}
	for _, e := range topo.Edges {
		g.adj[e.Upstream] = append(g.adj[e.Upstream], e.Downstream)
	}
	for _, dev := range topo.Devices {
		if dev.Detects != nil {
			g.adj[dev.Detects.Device] = append(g.adj[dev.Detects.Device], dev.Name)
		}
	}
	return g
}

// shortestPath returns the node sequence of a shortest path from->to (BFS,
// ties broken by topology declaration/adjacency insertion order), or
// ok=false if none exists.
func (g *runtimeGraph) shortestPath(from, to string) ([]string, bool) {
	if from == to {
		return []string{from}, true
	}
	type node struct {
		name   string
		parent *node
	}
	visited := map[string]bool{from: true}
	queue := []*node{{name: from}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range g.adj[n.name] {
			if visited[next] {
				continue
			}
			visited[next] = true
			child := &node{name: next, parent: n}
			if next == to {
				var path []string
				for c := child; c != nil; c = c.parent {
					path = append([]string{c.name}, path...)
				}
				return path, true
			}
			queue = append(queue, child)
		}
	}
	return nil, false
}

func (g *runtimeGraph) pathExists(from, to string) bool {
	_, ok := g.shortestPath(from, to)
	return ok
}

// renderChainPrefix renders chain[0:brokenIdx+1] as BFS-shortest-path
// segments, substituting "???" at the first broken link (§4.8.2).
func renderChainPrefix(g *runtimeGraph, chain []string) string {
	var parts []string
	for i := 0; i+1 < len(chain); i++ {
		path, ok := g.shortestPath(chain[i], chain[i+1])
		if !ok {
			if len(parts) == 0 {
				parts = append(parts, chain[i])
			}
			parts = append(parts, "???")
			break
		}
		if len(parts) == 0 {
			parts = append(parts, path...)
		} else {
			parts = append(parts, path[1:]...)
		}
	}
	return strings.Join(parts, " -> ")
}

// firstBrokenLink returns the index i of the first pair (chain[i], chain[i+1])
// with no path, or -1 if the whole chain is realized.
func firstBrokenLink(g *runtimeGraph, chain []string) int {
	for i := 0; i+1 < len(chain); i++ {
		if !g.pathExists(chain[i], chain[i+1]) {
			return i
		}
	}
	return -1
}

// checkDeclaredChain implements §4.8.2 for one declared chain.
func checkDeclaredChain(bag *diag.Bag, g *runtimeGraph, chain ast.CausalityChain, lang diag.Language) {
	broken := firstBrokenLink(g, chain.Devices)
	if broken < 0 {
		return
	}
	expected := strings.Join(chain.Devices, " -> ")
	realized := renderChainPrefix(g, chain.Devices)
	bag.Errorf(diag.CheckerCausality, toPosition(chain.Pos), diag.Title(lang, "causality-chain-broken"),
		fmt.Sprintf("broken link %s -> %s", chain.Devices[broken], chain.Devices[broken+1]),
		[]string{
			fmt.Sprintf("expected chain: %s", expected),
			fmt.Sprintf("realized prefix: %s", realized),
		},
		"add the missing connected_to/detects edge to restore the declared chain")
}

// waitSensorDevice extracts the device a wait expression refers to, if that
// device is of kind sensor: either a leading `device.` segment, or a bare
// device-name equality check (§4.8.3).
func waitSensorDevice(topo *ir.TopologyGraph, expr string) (string, bool) {
	token := expr
	if i := strings.IndexAny(token, " \t"); i >= 0 {
		token = token[:i]
	}
	if i := strings.Index(token, "."); i >= 0 {
		token = token[:i]
	}
	dev, ok := topo.Device(token)
	if !ok || dev.Kind != ast.DeviceSensor {
		return "", false
	}
	return token, true
}

// firstOutputPort returns the first digital_output device (declaration
// order) with a path to target, per the documented advisory tie-break.
func firstOutputPort(topo *ir.TopologyGraph, g *runtimeGraph, target string) (string, []string, bool) {
	for _, dev := range topo.Devices {
		if dev.Kind != ast.DeviceDigitalOutput {
			continue
		}
		if path, ok := g.shortestPath(dev.Name, target); ok {
			return dev.Name, path, true
		}
	}
	return "", nil, false
}

// findMatchingChain finds the declared chain containing both actionTarget
// and waitSensor with actionTarget preceding waitSensor, preferring the
// chain with the shortest index span between the two (§4.8.3 item 1). It
// returns the matching sub-slice [start:end+1] of that chain's devices.
func findMatchingChain(chains []ast.CausalityChain, actionTarget, waitSensor string) (sub []string, found bool) {
	bestSpan := -1
	for _, chain := range chains {
		ai, wi := -1, -1
		for i, name := range chain.Devices {
			if name == actionTarget && ai < 0 {
				ai = i
			}
			if name == waitSensor {
				wi = i
			}
		}
		if ai < 0 || wi < 0 || ai >= wi {
			continue
		}
		span := wi - ai
		if !found || span < bestSpan {
			sub, bestSpan, found = chain.Devices[ai:wi+1], span, true
		}
	}
	return sub, found
}

// checkImplicitPair implements §4.8.3's three-tier resolution for one
// (action, wait) pair within the same step.
func checkImplicitPair(bag *diag.Bag, topo *ir.TopologyGraph, g *runtimeGraph, chains []ast.CausalityChain, a ast.Action, waitSensor string, waitPos ast.Pos, lang diag.Language) {
	if sub, ok := findMatchingChain(chains, a.Target, waitSensor); ok {
		broken := firstBrokenLink(g, sub)
		if broken < 0 {
			return
		}
		bag.Errorf(diag.CheckerCausality, toPosition(waitPos), diag.Title(lang, "causality-pair-broken"),
			fmt.Sprintf("declared chain segment %s -> %s has no realized path between %s and %s",
				sub[0], sub[len(sub)-1], sub[broken], sub[broken+1]),
			[]string{fmt.Sprintf("realized prefix: %s", renderChainPrefix(g, sub))},
			"restore the missing link in the declared causality chain")
		return
	}

	sourcePort, sourcePath, sourceOK := firstOutputPort(topo, g, a.Target)
	feedbackOK := g.pathExists(a.Target, waitSensor)

	switch {
	case sourceOK && feedbackOK:
		// Both legs resolve and share a_target as their common endpoint, so
		// the concatenation is connected by construction.
		return
	case !sourceOK && !feedbackOK:
		bag.Errorf(diag.CheckerCausality, toPosition(waitPos), diag.Title(lang, "causality-pair-broken"),
			fmt.Sprintf("no source path to %q and no feedback path from %q to sensor %q", a.Target, a.Target, waitSensor),
			nil, "check connected_to wiring from an output port and add detects/connected_to on the sensor")
	case !sourceOK:
		bag.Errorf(diag.CheckerCausality, toPosition(waitPos), diag.Title(lang, "causality-pair-broken"),
			fmt.Sprintf("no path from any output port to %q", a.Target),
			nil, "check connected_to wiring from an output port (digital_output) down to the action target")
	default:
		bag.Errorf(diag.CheckerCausality, toPosition(waitPos), diag.Title(lang, "causality-pair-broken"),
			fmt.Sprintf("no feedback path from %q to sensor %q", a.Target, waitSensor),
			[]string{fmt.Sprintf("source path: %s", strings.Join(sourcePath, " -> ")), fmt.Sprintf("source port: %s", sourcePort)},
			"add a detects/connected_to edge linking the action target to the sensor")
	}
}

// RunCausality checks every declared causality chain and every implicit
// action/wait pair against the fused runtime graph (§4.8).
func RunCausality(topo *ir.TopologyGraph, constraints *ir.ConstraintSet, tasks []*ast.Task, lang diag.Language) (CausalityLevel, []*diag.Diagnostic) {
	bag := diag.NewBag(diag.StageCausality)
	g := buildRuntimeGraph(topo)

	for _, chain := range constraints.Causality {
		checkDeclaredChain(bag, g, chain, lang)
	}

	for _, task := range tasks {
		for _, step := range task.Steps {
			var actions []ast.Action
			for _, a := range ast.AllActions(step.Body) {
				if a.Kind != ast.ActionLog && a.Target != "" {
					actions = append(actions, a)
				}
			}
			type sensorWait struct {
				device string
				wait   ast.Wait
			}
			var waits []sensorWait
			for _, w := range ast.AllWaits(step.Body) {
				if dev, ok := waitSensorDevice(topo, w.Expr); ok {
					waits = append(waits, sensorWait{device: dev, wait: w})
				}
			}
			for _, a := range actions {
				for _, sw := range waits {
					checkImplicitPair(bag, topo, g, constraints.Causality, a, sw.device, sw.wait.Pos, lang)
				}
			}
		}
	}

	level := CausalityPass
	if !bag.Empty() {
		level = CausalityFailed
	}
	return level, bag.Items()
}
