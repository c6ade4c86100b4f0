package verify

import (
	"fmt"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
	"github.com/plcforge/plcc/internal/ir"
)

// TimingLevel is the verdict a Timing run reaches.
type TimingLevel int

const (
	TimingPass TimingLevel = iota
	TimingFailed
)

func (l TimingLevel) String() string {
	if l == TimingPass {
		return "Pass"
	}
	return "Failed"
}

// actionDuration resolves a single action's own duration plus the maximum
// upstream connected_to response-time chain (§4.7.1).
func actionDuration(topo *ir.TopologyGraph, model *ir.TimingModel, task, step string, a ast.Action, seq int) (int, bool) {
	if a.Kind == ast.ActionLog || a.Target == "" {
		return 0, false
	}
	base := fmt.Sprintf("%s.%s.%s-%s", task, step, ir.ActionKindLabel(a.Kind), a.Target)
	key := base
	for n := 2; n <= seq; n++ {
		key = fmt.Sprintf("%s-%d", base, n)
	}
	own, ok := model.Lookup(key)
	if !ok {
		return 0, false
	}
	upstream := maxUpstreamResponse(topo, a.Target, map[string]bool{})
	return own.MaxMs + upstream, true
}

// maxUpstreamResponse walks connected_to in reverse (predecessors) and sums
// the maximum chain of response_ms, avoiding revisits along the current
// path (a device may legitimately appear down two different branches of a
// diamond topology, just not twice along the same chain).
func maxUpstreamResponse(topo *ir.TopologyGraph, device string, visiting map[string]bool) int {
	if visiting[device] {
		return 0
	}
	visiting[device] = true
	defer delete(visiting, device)

	best := 0
	for _, edge := range topo.Predecessors(device) {
		dev, ok := topo.Device(edge.Upstream)
		if !ok {
			continue
		}
		own := 0
		if dev.ResponseMs != nil {
			own = *dev.ResponseMs
		}
		chain := own + maxUpstreamResponse(topo, edge.Upstream, visiting)
		if chain > best {
			best = chain
		}
	}
	return best
}

// stepWorstCase computes §4.7.2's step worst case: the maximum action
// duration across the whole statement tree (branches included), and the
// maximum timeout, taking the larger of the two (reflecting concurrent
// firing within a single step).
func stepWorstCase(topo *ir.TopologyGraph, model *ir.TimingModel, task, step string, body ast.Body) (worst int, criticalPath []string) {
	actionMax, timeoutMax := 0, 0
	var actionCrit, timeoutCrit string

	seq := make(map[string]int)
	for _, a := range ast.AllActions(body) {
		if a.Kind == ast.ActionLog || a.Target == "" {
			continue
		}
		base := fmt.Sprintf("%s-%s", ir.ActionKindLabel(a.Kind), a.Target)
		seq[base]++
		ms, ok := actionDuration(topo, model, task, step, a, seq[base])
		if !ok {
			continue
		}
		if ms > actionMax {
			actionMax = ms
			actionCrit = fmt.Sprintf("%s(%s)=%dms", ir.ActionKindLabel(a.Kind), a.Target, ms)
		}
	}
	for _, to := range ast.AllTimeouts(body) {
		ms := to.Duration.Millis()
		if ms > timeoutMax {
			timeoutMax = ms
			timeoutCrit = fmt.Sprintf("timeout->%s=%dms", to.Target, ms)
		}
	}

	worst = actionMax
	if timeoutMax > worst {
		worst = timeoutMax
	}
	if actionCrit != "" {
		criticalPath = append(criticalPath, actionCrit)
	}
	if timeoutCrit != "" {
		criticalPath = append(criticalPath, timeoutCrit)
	}
	return worst, criticalPath
}

// taskWorstCase sums step worst cases (sequential composition).
func taskWorstCase(topo *ir.TopologyGraph, model *ir.TimingModel, task *ast.Task) (total int, criticalPath []string) {
	for _, step := range task.Steps {
		ms, crit := stepWorstCase(topo, model, task.Name, step.Name, step.Body)
		total += ms
		criticalPath = append(criticalPath, crit...)
	}
	return total, criticalPath
}

// minStartDelay implements §4.7.3's must_start_after analysis: the minimum
// realizable interval among every transition landing on the scope's first
// step, where timeout(d) contributes d and always/condition contribute 0. A
// target with no incoming transition that is the machine's initial state has
// a delay of 0.
func minStartDelay(sm *ir.StateMachine, target ir.State) (int, string, bool) {
	best := -1
	var bestLabel string
	for _, t := range sm.Transitions {
		if t.To != target {
			continue
		}
		ms := 0
		label := "always/condition"
		if t.Guard.Kind == ir.GuardTimeout {
			ms = t.Guard.DurationMs
			label = fmt.Sprintf("timeout(%d)", ms)
		}
		if best == -1 || ms < best {
			best = ms
			bestLabel = fmt.Sprintf("%s -> %s via %s", t.From.String(), t.To.String(), label)
		}
	}
	if best == -1 {
		if target == sm.Initial {
			return 0, "目标是状态机初始状态，无前驱延迟", true
		}
		return 0, "", false
	}
	return best, bestLabel, true
}

func firstStepState(idx map[string]*ast.Task, taskName string) (ir.State, bool) {
	t, ok := idx[taskName]
	if !ok || len(t.Steps) == 0 {
		return ir.State{}, false
	}
	return ir.State{Task: taskName, Step: t.Steps[0].Name}, true
}

// RunTiming checks every must_complete_within / must_start_after rule
// against the device-timing model and state machine (§4.7).
func RunTiming(topo *ir.TopologyGraph, model *ir.TimingModel, sm *ir.StateMachine, constraints *ir.ConstraintSet, tasks []*ast.Task, lang diag.Language) (TimingLevel, []*diag.Diagnostic) {
	bag := diag.NewBag(diag.StageTimingVerify)
	byName := make(map[string]*ast.Task)
	for _, t := range tasks {
		byName[t.Name] = t
	}

	for _, rule := range constraints.Timing {
		task, ok := byName[rule.Scope.Task]
		if !ok {
			continue
		}
		limitMs := rule.Duration.Millis()

		switch rule.Relation {
		case ast.MustCompleteWithin:
			var worst int
			var crit []string
			if rule.Scope.Kind == ast.ScopeTask {
				worst, crit = taskWorstCase(topo, model, task)
			} else {
				for _, step := range task.Steps {
					if step.Name == rule.Scope.Step {
						worst, crit = stepWorstCase(topo, model, task.Name, step.Name, step.Body)
						break
					}
				}
			}
			if worst > limitMs {
				bag.Errorf(diag.CheckerTiming, toPosition(rule.Pos), diag.Title(lang, "timing-exceeded"),
					fmt.Sprintf("worst-case duration %dms exceeds must_complete_within %dms", worst, limitMs),
					crit, "shorten the critical-path action/timeout or relax the must_complete_within bound")
			}

		case ast.MustStartAfter:
			var target ir.State
			var ok bool
			if rule.Scope.Kind == ast.ScopeTask {
				target, ok = firstStepState(byName, rule.Scope.Task)
			} else {
				target = ir.State{Task: rule.Scope.Task, Step: rule.Scope.Step}
				ok = sm.HasState(target)
			}
			if !ok {
				continue
			}
			minMs, label, found := minStartDelay(sm, target)
			if !found {
				continue
			}
			if minMs < limitMs {
				bag.Errorf(diag.CheckerTiming, toPosition(rule.Pos), diag.Title(lang, "timing-interval-too-short"),
					fmt.Sprintf("minimum realizable interval %dms is less than must_start_after %dms", minMs, limitMs),
					[]string{label}, "delay the predecessor transition or lengthen its timeout")
			}
		}
	}

	level := TimingPass
	if !bag.Empty() {
		level = TimingFailed
	}
	return level, bag.Items()
}

