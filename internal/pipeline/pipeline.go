// Package pipeline sequences the IR builders and verification engines over
// a parsed program into a single deterministic run (§5).
package pipeline

import (
	"time"

	"github.com/plcforge/plcc/internal/ast"
	"github.com/plcforge/plcc/internal/diag"
	"github.com/plcforge/plcc/internal/ir"
	"github.com/plcforge/plcc/internal/verify"
)

// Config carries the pipeline's only verifier-facing knob (§6) plus the
// diagnostic-rendering language selected for this run.
type Config struct {
	BMCMaxDepth *int
	Language    diag.Language
}

// Source is the pipeline's input: an already-parsed program (surface
// grammar is an external collaborator per spec.md §1) and the filename used
// for diagnostic positions lacking their own.
type Source struct {
	Program  *ast.Program
	Filename string
}

// SafetySummary is the Safety verifier's entry in the verification summary.
type SafetySummary struct {
	Level         verify.SafetyLevel
	ExploredDepth int
	Warnings      []string
}

// VerificationSummary is the pipeline's aggregated, non-diagnostic output
// (spec.md §6): one entry per verifier, Safety carrying the extra BMC
// bookkeeping the other three don't need.
type VerificationSummary struct {
	Safety    SafetySummary
	Liveness  verify.LivenessLevel
	Timing    verify.TimingLevel
	Causality verify.CausalityLevel
}

// Result is the pipeline's complete output: every IR artifact produced, the
// aggregated verification summary, the merged diagnostic list, and
// per-phase timings.
type Result struct {
	Topology     *ir.TopologyGraph
	Constraints  *ir.ConstraintSet
	StateMachine *ir.StateMachine
	TimingModel  *ir.TimingModel

	Summary      VerificationSummary
	Diagnostics  []*diag.Diagnostic
	PhaseTimings map[string]int64 // milliseconds, keyed by phase name
}

// Run executes the full IR-build + verification pipeline (§5). Every IR
// builder here is total: it never rejects a whole program, only the
// individual rules/devices/edges that don't validate, which it drops while
// diagnosing them (§4.1-§4.4). §7's "skip when required inputs are missing"
// policy therefore manifests as verifiers operating on the already-reduced,
// valid subset of constraints a failed builder still produced, rather than
// as whole-stage skipping — every stage always runs.
func Run(cfg Config, src Source) Result {
	result := Result{PhaseTimings: make(map[string]int64)}
	prog := src.Program
	lang := cfg.Language

	timed := func(phase string, fn func()) {
		start := time.Now()
		fn()
		result.PhaseTimings[phase] = time.Since(start).Milliseconds()
	}

	var bags []*diag.Bag

	topoBag := diag.NewBag(diag.StageTopology)
	timed("topology", func() {
		topo, diags := ir.BuildTopology(prog.Topology)
		result.Topology = topo
		addAll(topoBag, diags)
	})
	bags = append(bags, topoBag)

	constraintsBag := diag.NewBag(diag.StageConstraints)
	timed("constraints", func() {
		cs, diags := ir.BuildConstraints(result.Topology, prog.Constraints, prog.Tasks)
		result.Constraints = cs
		addAll(constraintsBag, diags)
	})
	bags = append(bags, constraintsBag)

	smBag := diag.NewBag(diag.StageStateMachine)
	timed("state_machine", func() {
		sm, diags := ir.BuildStateMachine(prog.Tasks)
		result.StateMachine = sm
		addAll(smBag, diags)
	})
	bags = append(bags, smBag)

	timingModelBag := diag.NewBag(diag.StageTiming)
	timed("timing_model", func() {
		model, diags := ir.BuildTimingModel(result.Topology, prog.Tasks)
		result.TimingModel = model
		addAll(timingModelBag, diags)
	})
	bags = append(bags, timingModelBag)

	safetyBag := diag.NewBag(diag.StageSafety)
	timed("safety", func() {
		report, diags := verify.RunSafety(result.Topology, result.Constraints, result.StateMachine, verify.SafetyConfig{BMCMaxDepth: cfg.BMCMaxDepth}, lang)
		result.Summary.Safety = SafetySummary{Level: report.Level, ExploredDepth: report.ExploredDepth, Warnings: report.Warnings}
		addAll(safetyBag, diags)
	})
	bags = append(bags, safetyBag)

	livenessBag := diag.NewBag(diag.StageLiveness)
	timed("liveness", func() {
		level, diags := verify.RunLiveness(prog.Tasks, result.StateMachine, lang)
		result.Summary.Liveness = level
		addAll(livenessBag, diags)
	})
	bags = append(bags, livenessBag)

	timingVerifyBag := diag.NewBag(diag.StageTimingVerify)
	timed("timing_verify", func() {
		level, diags := verify.RunTiming(result.Topology, result.TimingModel, result.StateMachine, result.Constraints, prog.Tasks, lang)
		result.Summary.Timing = level
		addAll(timingVerifyBag, diags)
	})
	bags = append(bags, timingVerifyBag)

	causalityBag := diag.NewBag(diag.StageCausality)
	timed("causality", func() {
		level, diags := verify.RunCausality(result.Topology, result.Constraints, prog.Tasks, lang)
		result.Summary.Causality = level
		addAll(causalityBag, diags)
	})
	bags = append(bags, causalityBag)

	result.Diagnostics = diag.Merge(bags...)
	return result
}

// addAll re-accumulates diagnostics a builder/verifier already produced
// into this run's bag for that stage, so diag.Merge sees exactly one bag
// per stage regardless of how many callers touched it.
func addAll(bag *diag.Bag, diags []*diag.Diagnostic) {
	for _, d := range diags {
		bag.Add(d)
	}
}
