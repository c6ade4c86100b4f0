package ir

import (
	"fmt"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
)

// DurationInterval is a derived [min_ms, max_ms] action duration. The
// selection order in §3.1 yields a single deterministic value per action, so
// MinMs always equals MaxMs. The timing verifier's upstream propagation
// (§4.7.1) reads only MaxMs and adds the upstream response-time chain to it
// as a single value; MinMs is not read.
type DurationInterval struct {
	MinMs int
	MaxMs int
}

// TimingModel maps a stable per-action key to its derived duration.
type TimingModel struct {
	entries map[string]DurationInterval
	keys    []string // insertion order, for deterministic iteration
}

// Lookup returns the interval stored under key, if any.
func (m *TimingModel) Lookup(key string) (DurationInterval, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Keys returns every stable key in insertion (declaration) order.
func (m *TimingModel) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// ActionKindLabel renders an action kind's stable key fragment ("extend",
// "retract", "set", "log"), shared with the timing verifier's upstream
// key-reconstruction (§4.7.1).
func ActionKindLabel(k ast.ActionKind) string { return actionKindLabel(k) }

func actionKindLabel(k ast.ActionKind) string {
	switch k {
	case ast.ActionExtend:
		return "extend"
	case ast.ActionRetract:
		return "retract"
	case ast.ActionSet:
		return "set"
	default:
		return "log"
	}
}

// deviceDuration picks the first non-empty attribute per §3.1's selection
// order for the given action kind. ok is false for log actions or when no
// relevant attribute is present (no entry is recorded, not an error).
func deviceDuration(dev *ast.Device, kind ast.ActionKind) (int, bool) {
	pick := func(attrs ...*int) (int, bool) {
		for _, a := range attrs {
			if a != nil {
				return *a, true
			}
		}
		return 0, false
	}
	switch kind {
	case ast.ActionExtend:
		return pick(dev.StrokeMs, dev.ResponseMs, dev.RampMs)
	case ast.ActionRetract:
		return pick(dev.RetractMs, dev.ResponseMs, dev.RampMs)
	case ast.ActionSet:
		return pick(dev.RampMs, dev.ResponseMs)
	default:
		return 0, false
	}
}

// BuildTimingModel lowers per-action durations for every step (including
// actions nested in parallel/race sub-branches) into a TimingModel (§4.4).
func BuildTimingModel(topo *TopologyGraph, tasks []*ast.Task) (*TimingModel, []*diag.Diagnostic) {
	bag := diag.NewBag(diag.StageTiming)
	model := &TimingModel{entries: make(map[string]DurationInterval)}

	for _, task := range tasks {
		for _, step := range task.Steps {
			for _, action := range ast.AllActions(step.Body) {
				if action.Kind == ast.ActionLog || action.Target == "" {
					continue
				}
				dev, ok := topo.Device(action.Target)
				if !ok {
					continue
				}
				ms, ok := deviceDuration(dev, action.Kind)
				if !ok {
					continue
				}
				base := fmt.Sprintf("%s.%s.%s-%s", task.Name, step.Name, actionKindLabel(action.Kind), action.Target)
				key := base
				for n := 2; model.hasKey(key); n++ {
					key = fmt.Sprintf("%s-%d", base, n)
				}
				model.set(key, DurationInterval{MinMs: ms, MaxMs: ms})
			}
		}
	}

	return model, bag.Items()
}

func (m *TimingModel) hasKey(key string) bool {
	_, ok := m.entries[key]
	return ok
}

func (m *TimingModel) set(key string, interval DurationInterval) {
	m.entries[key] = interval
	m.keys = append(m.keys, key)
}
