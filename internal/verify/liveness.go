package verify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
	"github.com/plcforge/plcc/internal/ir"
)

// LivenessLevel is the verdict a Liveness run reaches.
type LivenessLevel int

const (
	LivenessPass LivenessLevel = iota
	LivenessFailed
)

func (l LivenessLevel) String() string {
	if l == LivenessPass {
		return "Pass"
	}
	return "Failed"
}

type stepRef struct {
	task *ast.Task
	step *ast.Step
}

func indexSteps(tasks []*ast.Task) map[string]stepRef {
	out := make(map[string]stepRef)
	for _, t := range tasks {
		for _, s := range t.Steps {
			out[t.Name+"."+s.Name] = stepRef{task: t, step: s}
		}
	}
	return out
}

// declaredStepOf resolves the ast.Step a (possibly synthesized) state's
// diagnostics should attribute to.
func declaredStepOf(steps map[string]stepRef, s ir.State) (stepRef, bool) {
	ref, ok := steps[s.Task+"."+s.DeclaredStep()]
	return ref, ok
}

func linePosOf(steps map[string]stepRef, s ir.State) ast.Pos {
	if ref, ok := declaredStepOf(steps, s); ok {
		return ref.step.Pos
	}
	return ast.Pos{}
}

// summarizeBody implements §4.6 item 2's recursive jump-path summary: gotos
// and timeouts are always jumps; a wait is a jump iff completionIsJump holds
// at this point of the tree; race branches with an explicit `then: goto`
// make their own completion a jump; a statement-free body falls through to
// whatever completionIsJump says.
func summarizeBody(resolvable func(string) bool, b ast.Body, completionIsJump bool) (hasJump, hasNonJump bool) {
	if len(b.Gotos) > 0 || len(b.Timeouts) > 0 {
		hasJump = true
	}
	if len(b.Waits) > 0 {
		if completionIsJump {
			hasJump = true
		} else {
			hasNonJump = true
		}
	}
	for _, p := range b.Parallel {
		for _, branch := range p.Branches {
			j, nj := summarizeBody(resolvable, branch.Body, completionIsJump)
			hasJump = hasJump || j
			hasNonJump = hasNonJump || nj
		}
	}
	for _, r := range b.Race {
		for _, rb := range r.Branches {
			branchCompletionIsJump := completionIsJump
			if rb.Then != nil && resolvable(*rb.Then) {
				branchCompletionIsJump = true
			}
			j, nj := summarizeBody(resolvable, rb.Body, branchCompletionIsJump)
			hasJump = hasJump || j
			hasNonJump = hasNonJump || nj
		}
	}
	if !ast.HasControlFlow(b) {
		if completionIsJump {
			hasJump = true
		} else {
			hasNonJump = true
		}
	}
	return hasJump, hasNonJump
}

// RunLiveness checks every statement-tree path for an escape: waits without
// timeout or allow_indefinite_wait, declared-unreachable completions that
// are in fact reachable, structurally dangling states, and cycles with no
// timeout or indefinite-wait escape edge (§4.6).
func RunLiveness(tasks []*ast.Task, sm *ir.StateMachine, lang diag.Language) (LivenessLevel, []*diag.Diagnostic) {
	bag := diag.NewBag(diag.StageLiveness)
	steps := indexSteps(tasks)
	byName := make(map[string]*ast.Task)
	for _, t := range tasks {
		byName[t.Name] = t
	}
	resolvable := func(name string) bool {
		t, ok := byName[name]
		return ok && len(t.Steps) > 0
	}

	// 1. Wait without escape.
	for _, task := range tasks {
		for _, step := range task.Steps {
			waits := ast.AllWaits(step.Body)
			if len(waits) == 0 || step.AllowIndefiniteWait {
				continue
			}
			if len(ast.AllTimeouts(step.Body)) > 0 {
				continue
			}
			for _, w := range waits {
				pos := w.Pos
				if pos.Line == 0 {
					pos = step.Pos
				}
				bag.Errorf(diag.CheckerLiveness, toPosition(pos), diag.Title(lang, "wait-without-escape"),
					fmt.Sprintf("step %q.%q waits on %q with no timeout and allow_indefinite_wait is not set", task.Name, step.Name, w.Expr),
					nil, "add a `timeout` clause or set `allow_indefinite_wait: true` on this step")
			}
		}
	}

	// 2. Unreachable on_complete.
	for _, task := range tasks {
		if task.OnComplete.Kind != ast.OnCompleteUnreachable || len(task.Steps) == 0 {
			continue
		}
		last := task.Steps[len(task.Steps)-1]
		_, hasNonJump := summarizeBody(resolvable, last.Body, false)
		if hasNonJump {
			bag.Errorf(diag.CheckerLiveness, toPosition(task.OnComplete.Pos), diag.Title(lang, "unreachable-completion"),
				fmt.Sprintf("task %q declares on_complete: unreachable, but step %q has a path that completes without a goto or timeout", task.Name, last.Name),
				nil, "add a goto/timeout on every path, or remove the unreachable declaration")
		}
	}

	// 3. Dangling terminal.
	legitimate := make(map[string]bool)
	for _, task := range tasks {
		if task.OnComplete.Kind != ast.OnCompleteNone || len(task.Steps) == 0 {
			continue
		}
		last := task.Steps[len(task.Steps)-1]
		legitimate[task.Name+"."+last.Name] = true
	}
	for _, s := range sm.States {
		if len(sm.OutgoingFrom(s)) > 0 {
			continue
		}
		if legitimate[s.Task+"."+s.DeclaredStep()] {
			continue
		}
		bag.Errorf(diag.CheckerLiveness, toPosition(linePosOf(steps, s)), diag.Title(lang, "dangling-terminal"),
			fmt.Sprintf("state %q has no outgoing transition and is not a declared terminal", s.String()),
			nil, "add a goto/timeout/wait completion, or declare the owning task's on_complete explicitly")
	}

	// 4. SCC escape.
	for _, scc := range sm.SCCs() {
		if !scc.HasCycle {
			continue
		}
		escapes := false
		for _, edge := range scc.Edges {
			if edge.Guard.Kind == ir.GuardTimeout {
				escapes = true
				break
			}
			if ref, ok := declaredStepOf(steps, edge.From); ok && ref.step.AllowIndefiniteWait {
				escapes = true
				break
			}
		}
		if escapes {
			continue
		}
		names := make([]string, 0, len(scc.Members))
		for _, m := range scc.Members {
			names = append(names, m.String())
		}
		sort.Strings(names)
		pos := minPos(steps, scc.Members)
		bag.Errorf(diag.CheckerLiveness, toPosition(pos), diag.Title(lang, "scc-without-escape"),
			fmt.Sprintf("cycle {%s} has no outgoing edge guarded by a timeout or an allow_indefinite_wait step", strings.Join(names, ", ")),
			nil, "add a timeout on at least one state in the cycle, or mark one with allow_indefinite_wait: true")
	}

	level := LivenessPass
	if !bag.Empty() {
		level = LivenessFailed
	}
	return level, bag.Items()
}

func minPos(steps map[string]stepRef, members []ir.State) ast.Pos {
	var best ast.Pos
	first := true
	for _, m := range members {
		p := linePosOf(steps, m)
		if p.Line == 0 {
			continue
		}
		if first || p.Line < best.Line {
			best = p
			first = false
		}
	}
	return best
}
