package ir

import (
	"fmt"
	"strings"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
)

// State is a pair (task, step) identifying one node of the state machine
// graph. Synthesized states (fork/join/decision/branch, §4.3.3–§4.3.4) carry
// a Step name of the form "<declaredStep>__<suffix>"; DeclaredStep recovers
// the originating step name for line attribution (§4.6).
type State struct {
	Task string
	Step string
}

func (s State) String() string { return s.Task + "." + s.Step }

// DeclaredStep returns the step name a (possibly synthesized) state's line
// number and diagnostics should be attributed to.
func (s State) DeclaredStep() string {
	if i := strings.Index(s.Step, "__"); i >= 0 {
		return s.Step[:i]
	}
	return s.Step
}

// IsSynthesized reports whether the state was produced by parallel/race
// lowering rather than declared directly in the source.
func (s State) IsSynthesized() bool {
	return strings.Contains(s.Step, "__")
}

// IsParallelJoin reports whether s is a synthesized parallel-join state,
// used by the safety verifier's join effect-union rewrite (§4.5.1).
func (s State) IsParallelJoin() bool {
	return strings.Contains(s.Step, "__parallel_") && strings.HasSuffix(s.Step, "_join")
}

// IsParallelFork reports whether s is a synthesized parallel-fork state.
func (s State) IsParallelFork() bool {
	return strings.Contains(s.Step, "__parallel_") && strings.HasSuffix(s.Step, "_fork")
}

// IsParallelBranch reports whether s is a synthesized parallel or race
// branch state.
func (s State) IsParallelBranch() bool {
	return strings.Contains(s.Step, "_branch_")
}

// GuardKind enumerates the closed set of transition guard variants.
type GuardKind int

const (
	GuardAlways GuardKind = iota
	GuardCondition
	GuardTimeout
)

// Guard is a transition's firing condition.
type Guard struct {
	Kind       GuardKind
	Expr       string // only meaningful for GuardCondition
	DurationMs int    // only meaningful for GuardTimeout
}

func (g Guard) String() string {
	switch g.Kind {
	case GuardCondition:
		return fmt.Sprintf("condition(%s)", g.Expr)
	case GuardTimeout:
		return fmt.Sprintf("timeout(%d)", g.DurationMs)
	default:
		return "always"
	}
}

// TimerOpKind enumerates the closed set of timer operation variants.
type TimerOpKind int

const (
	TimerStart TimerOpKind = iota
	TimerCancel
	TimerReset
)

// TimerOp is a single timer operation carried by a transition.
type TimerOp struct {
	Kind       TimerOpKind
	Name       string
	DurationMs int // only meaningful for TimerStart
}

// Transition is one edge of the state machine graph.
type Transition struct {
	From     State
	To       State
	Guard    Guard
	Actions  []ast.Action
	TimerOps []TimerOp
}

// StateMachine is the lowered [tasks] section (§4.3).
type StateMachine struct {
	States      []State
	Transitions []Transition
	Initial     State

	stateSet map[State]bool
}

// HasState reports set membership, used by the closure invariant (§8.2).
func (sm *StateMachine) HasState(s State) bool { return sm.stateSet[s] }

// OutgoingFrom returns every transition whose From equals s, in build order.
func (sm *StateMachine) OutgoingFrom(s State) []Transition {
	var out []Transition
	for _, t := range sm.Transitions {
		if t.From == s {
			out = append(out, t)
		}
	}
	return out
}

type smBuilder struct {
	sm          *StateMachine
	bag         *diag.Bag
	tasksByName map[string]*ast.Task
	timerSeq    int
}

func (b *smBuilder) addState(s State) {
	if b.sm.stateSet[s] {
		return
	}
	b.sm.stateSet[s] = true
	b.sm.States = append(b.sm.States, s)
}

func (b *smBuilder) addTransition(t Transition) {
	b.addState(t.From)
	b.addState(t.To)
	b.sm.Transitions = append(b.sm.Transitions, t)
}

func (b *smBuilder) nextTimerName(state State) string {
	b.timerSeq++
	return fmt.Sprintf("%s.%s.timer%d", state.Task, state.Step, b.timerSeq)
}

func initialStepName(task *ast.Task) string {
	if len(task.Steps) == 0 {
		return ""
	}
	return task.Steps[0].Name
}

// BuildStateMachine lowers the [tasks] section to a StateMachine (§4.3).
func BuildStateMachine(tasks []*ast.Task) (*StateMachine, []*diag.Diagnostic) {
	bag := diag.NewBag(diag.StageStateMachine)
	sm := &StateMachine{stateSet: make(map[State]bool)}
	b := &smBuilder{sm: sm, bag: bag, tasksByName: make(map[string]*ast.Task)}

	seen := make(map[string]bool)
	var ordered []*ast.Task
	for _, t := range tasks {
		if seen[t.Name] {
			bag.Errorf(diag.CheckerDuplicateDefinition, toPosition(t.Pos), "duplicate-task",
				fmt.Sprintf("task %q declared more than once", t.Name), nil,
				"rename one of the duplicate task declarations")
			continue
		}
		seen[t.Name] = true
		b.tasksByName[t.Name] = t
		ordered = append(ordered, t)
		if len(t.Steps) == 0 {
			bag.Errorf(diag.CheckerSemantic, toPosition(t.Pos), "empty-task",
				fmt.Sprintf("task %q declares no steps", t.Name), nil,
				"add at least one step or remove the task")
		}
	}

	if len(ordered) == 0 || len(ordered[0].Steps) == 0 {
		return sm, bag.Items()
	}
	sm.Initial = State{Task: ordered[0].Name, Step: initialStepName(ordered[0])}
	b.addState(sm.Initial)

	for _, task := range ordered {
		for i, step := range task.Steps {
			state := State{Task: task.Name, Step: step.Name}
			completion, hasCompletion := b.completionTarget(task, i)
			b.processBody(state, step.Body, orNil(hasCompletion, completion))
		}
	}

	return sm, bag.Items()
}

func orNil(ok bool, s State) *State {
	if !ok {
		return nil
	}
	v := s
	return &v
}

// completionTarget implements §4.3.1's per-step completion target: the next
// step in the same task, otherwise the task's on_complete goto target
// (initial step of T), otherwise none.
func (b *smBuilder) completionTarget(task *ast.Task, stepIdx int) (State, bool) {
	if stepIdx+1 < len(task.Steps) {
		return State{Task: task.Name, Step: task.Steps[stepIdx+1].Name}, true
	}
	if task.OnComplete.Kind == ast.OnCompleteGoto {
		target, ok := b.tasksByName[task.OnComplete.Target]
		if !ok || len(target.Steps) == 0 {
			return State{}, false
		}
		return State{Task: target.Name, Step: initialStepName(target)}, true
	}
	return State{}, false
}

func (b *smBuilder) resolveGotoTarget(taskName string) (State, bool) {
	target, ok := b.tasksByName[taskName]
	if !ok || len(target.Steps) == 0 {
		return State{}, false
	}
	return State{Task: target.Name, Step: initialStepName(target)}, true
}

// processBody implements §4.3.2–§4.3.4: it emits, from `state`, the
// transitions induced by body's parallel/race blocks (sourced from state,
// carrying the body's own actions), then the goto/timeout/wait/fallback
// transitions in the fixed order the spec prescribes.
func (b *smBuilder) processBody(state State, body ast.Body, completion *State) {
	// 1. Parallel blocks.
	for k, block := range body.Parallel {
		forkState := State{Task: state.Task, Step: fmt.Sprintf("%s__parallel_%d_fork", state.Step, k)}
		joinState := State{Task: state.Task, Step: fmt.Sprintf("%s__parallel_%d_join", state.Step, k)}
		b.addTransition(Transition{From: state, To: forkState, Guard: Guard{Kind: GuardAlways}, Actions: body.Actions})
		for i, branch := range block.Branches {
			branchState := State{Task: state.Task, Step: fmt.Sprintf("%s__parallel_%d_branch_%d", state.Step, k, i)}
			b.addTransition(Transition{From: forkState, To: branchState, Guard: Guard{Kind: GuardAlways}})
			b.processBody(branchState, branch.Body, &joinState)
		}
		if completion != nil {
			b.addTransition(Transition{From: joinState, To: *completion, Guard: Guard{Kind: GuardAlways}})
		} else {
			b.addState(joinState)
		}
	}

	// 2. Race blocks.
	for k, block := range body.Race {
		decisionState := State{Task: state.Task, Step: fmt.Sprintf("%s__race_%d_decision", state.Step, k)}
		b.addTransition(Transition{From: state, To: decisionState, Guard: Guard{Kind: GuardAlways}, Actions: body.Actions})
		for i, rbranch := range block.Branches {
			branchState := State{Task: state.Task, Step: fmt.Sprintf("%s__race_%d_branch_%d", state.Step, k, i)}
			b.addTransition(Transition{From: decisionState, To: branchState, Guard: Guard{Kind: GuardAlways}})
			branchCompletion := completion
			if rbranch.Then != nil {
				if target, ok := b.resolveGotoTarget(*rbranch.Then); ok {
					branchCompletion = &target
				} else {
					branchCompletion = nil
				}
			}
			b.processBody(branchState, rbranch.Body, branchCompletion)
		}
	}

	// 3. Gotos.
	for _, g := range body.Gotos {
		target, ok := b.resolveGotoTarget(g.Target)
		if !ok {
			continue
		}
		b.addTransition(Transition{From: state, To: target, Guard: Guard{Kind: GuardAlways}, Actions: body.Actions})
	}

	// 4. Timeouts.
	for _, to := range body.Timeouts {
		target, ok := b.resolveGotoTarget(to.Target)
		if !ok {
			continue
		}
		ms := to.Duration.Millis()
		timerName := b.nextTimerName(state)
		b.addTransition(Transition{
			From:  state,
			To:    target,
			Guard: Guard{Kind: GuardTimeout, DurationMs: ms},
			TimerOps: []TimerOp{
				{Kind: TimerStart, Name: timerName, DurationMs: ms},
			},
		})
	}

	// 5. Waits.
	for _, w := range body.Waits {
		if completion == nil {
			continue
		}
		b.addTransition(Transition{From: state, To: *completion, Guard: Guard{Kind: GuardCondition, Expr: w.Expr}, Actions: body.Actions})
	}

	// 6. Fallback unconditional transition.
	if !ast.HasControlFlow(body) && completion != nil {
		b.addTransition(Transition{From: state, To: *completion, Guard: Guard{Kind: GuardAlways}, Actions: body.Actions})
	}
}
