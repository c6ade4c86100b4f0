// Package ir builds the four jointly-produced intermediate representations
// a PLC-DSL program lowers to: the topology graph, the constraint set, the
// state machine, and the device-timing model. Each has its own builder that
// accumulates diagnostics into a diag.Bag; builders never share mutable
// state and never short-circuit on the first error (§4.1–§4.4).
package ir

import (
	"fmt"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
)

// EdgeKind classifies a topology edge by the physical/logical medium it
// represents.
type EdgeKind int

const (
	EdgeElectrical EdgeKind = iota
	EdgePneumatic
	EdgeLogical
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeElectrical:
		return "electrical"
	case EdgePneumatic:
		return "pneumatic"
	case EdgeLogical:
		return "logical"
	default:
		return "unknown"
	}
}

// connectionTable is the legal (upstream kind, downstream kind) -> edge kind
// table from §3.1. Any pairing absent from this table is a type_mismatch
// diagnostic.
var connectionTable = map[[2]ast.DeviceKind]EdgeKind{
	{ast.DeviceDigitalOutput, ast.DeviceSolenoidValve}: EdgeElectrical,
	{ast.DeviceDigitalOutput, ast.DeviceMotor}:          EdgeElectrical,
	{ast.DeviceDigitalInput, ast.DeviceSensor}:          EdgeElectrical,
	{ast.DeviceSolenoidValve, ast.DeviceCylinder}:       EdgePneumatic,
	{ast.DeviceDigitalInput, ast.DeviceDigitalInput}:    EdgeLogical,
	{ast.DeviceDigitalOutput, ast.DeviceDigitalOutput}:  EdgeLogical,
}

// Edge is a directed topology edge: Upstream -> Downstream.
type Edge struct {
	Upstream   string
	Downstream string
	Kind       EdgeKind
}

// TopologyGraph is the device wiring graph: a node per declared device plus
// the connected_to-derived edges between them.
type TopologyGraph struct {
	Devices  []*ast.Device          // declaration order
	ByName   map[string]*ast.Device
	Edges    []Edge
	outgoing map[string][]int // device name -> indices into Edges, source == name
	incoming map[string][]int // device name -> indices into Edges, target == name
}

// Device looks up a device by name.
func (g *TopologyGraph) Device(name string) (*ast.Device, bool) {
	d, ok := g.ByName[name]
	return d, ok
}

// Successors returns the devices directly downstream of name (edges where
// name is the upstream/source).
func (g *TopologyGraph) Successors(name string) []Edge {
	var out []Edge
	for _, i := range g.outgoing[name] {
		out = append(out, g.Edges[i])
	}
	return out
}

// Predecessors returns the devices directly upstream of name (edges where
// name is the downstream/target) — used by timing's upstream propagation
// and causality's runtime graph.
func (g *TopologyGraph) Predecessors(name string) []Edge {
	var out []Edge
	for _, i := range g.incoming[name] {
		out = append(out, g.Edges[i])
	}
	return out
}

// BuildTopology lowers the [topology] section to a TopologyGraph (§4.1).
// Building is deterministic in declaration order and never short-circuits:
// every device and every connected_to reference is checked.
func BuildTopology(devices []*ast.Device) (*TopologyGraph, []*diag.Diagnostic) {
	bag := diag.NewBag(diag.StageTopology)
	g := &TopologyGraph{
		ByName:   make(map[string]*ast.Device),
		outgoing: make(map[string][]int),
		incoming: make(map[string][]int),
	}

	// Pass 1: register device nodes, flagging duplicates.
	for _, d := range devices {
		if _, exists := g.ByName[d.Name]; exists {
			bag.Errorf(diag.CheckerDuplicateDefinition,
				diag.Position{File: d.Pos.File, Line: d.Pos.Line},
				"duplicate-device", fmt.Sprintf("device %q declared more than once", d.Name),
				nil, "rename one of the duplicate declarations")
			continue
		}
		g.ByName[d.Name] = d
		g.Devices = append(g.Devices, d)
	}

	// Pass 2: connected_to edges.
	for _, d := range devices {
		if d.ConnectedTo == nil {
			continue
		}
		upstreamName := *d.ConnectedTo
		upstream, ok := g.ByName[upstreamName]
		if !ok {
			bag.Errorf(diag.CheckerUndefinedReference,
				diag.Position{File: d.Pos.File, Line: d.Pos.Line},
				"undefined-connected-to",
				fmt.Sprintf("device %q connects to undefined device %q", d.Name, upstreamName),
				nil, "declare the referenced device or fix the typo")
			continue
		}
		kind, ok := connectionTable[[2]ast.DeviceKind{upstream.Kind, d.Kind}]
		if !ok {
			bag.Errorf(diag.CheckerTypeMismatch,
				diag.Position{File: d.Pos.File, Line: d.Pos.Line},
				"illegal-connection",
				fmt.Sprintf("%s (%s) cannot connect to %s (%s)", upstreamName, upstream.Kind, d.Name, d.Kind),
				nil, "check the legal wiring table for compatible device-kind pairs")
			continue
		}
		idx := len(g.Edges)
		g.Edges = append(g.Edges, Edge{Upstream: upstreamName, Downstream: d.Name, Kind: kind})
		g.outgoing[upstreamName] = append(g.outgoing[upstreamName], idx)
		g.incoming[d.Name] = append(g.incoming[d.Name], idx)
	}

	return g, bag.Items()
}
