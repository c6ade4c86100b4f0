// Package diag provides the structured diagnostic model shared by every IR
// builder and verifier: a taxonomy of checker tags, a source location, and a
// stable textual and JSON rendering.
package diag

// Checker tags, matching the taxonomy in the diagnostic surface.
const (
	CheckerParse               = "parse"
	CheckerSemantic            = "semantic"
	CheckerUndefinedReference  = "undefined_reference"
	CheckerTypeMismatch        = "type_mismatch"
	CheckerDuplicateDefinition = "duplicate_definition"
	CheckerSafety              = "safety"
	CheckerLiveness            = "liveness"
	CheckerTiming              = "timing"
	CheckerCausality           = "causality"
)

// Stage identifies where in the pipeline a diagnostic originated, used to
// order the merged diagnostic list deterministically (stage, then insertion
// order within stage).
type Stage int

const (
	StageTopology Stage = iota
	StageConstraints
	StageStateMachine
	StageTiming
	StageSafety
	StageLiveness
	StageTimingVerify
	StageCausality
)

// String names a stage for diagnostic rendering and JSON encoding.
func (s Stage) String() string {
	switch s {
	case StageTopology:
		return "topology"
	case StageConstraints:
		return "constraints"
	case StageStateMachine:
		return "state_machine"
	case StageTiming:
		return "timing_model"
	case StageSafety:
		return "safety"
	case StageLiveness:
		return "liveness"
	case StageTimingVerify:
		return "timing_verify"
	case StageCausality:
		return "causality"
	default:
		return "unknown"
	}
}

// ErrorInfo describes a checker tag for tooling (e.g. `plcc explain`).
type ErrorInfo struct {
	Checker     string
	Category    string
	Description string
}

// Registry maps checker tags to their taxonomy entry.
var Registry = map[string]ErrorInfo{
	CheckerParse:               {CheckerParse, "syntax", "Malformed source rejected upstream of the core"},
	CheckerSemantic:            {CheckerSemantic, "structure", "Empty or otherwise structurally invalid declaration"},
	CheckerUndefinedReference:  {CheckerUndefinedReference, "reference", "Reference names a device, state, task, or step that does not exist"},
	CheckerTypeMismatch:        {CheckerTypeMismatch, "topology", "connected_to pairing is not in the legal wiring table"},
	CheckerDuplicateDefinition: {CheckerDuplicateDefinition, "namespace", "Duplicate device or task name"},
	CheckerSafety:              {CheckerSafety, "verification", "A conflicts_with rule is reachable in the bounded model"},
	CheckerLiveness:            {CheckerLiveness, "verification", "A wait, completion, or cycle lacks an escape path"},
	CheckerTiming:              {CheckerTiming, "verification", "A must_complete_within or must_start_after rule is violated"},
	CheckerCausality:           {CheckerCausality, "verification", "A causality chain or implicit action/wait pair is not physically connected"},
}

// GetErrorInfo returns the taxonomy entry for a checker tag.
func GetErrorInfo(checker string) (ErrorInfo, bool) {
	info, ok := Registry[checker]
	return info, ok
}

// IsVerifierChecker reports whether checker names one of the four
// verification engines (as opposed to a lowering-stage diagnostic).
func IsVerifierChecker(checker string) bool {
	switch checker {
	case CheckerSafety, CheckerLiveness, CheckerTiming, CheckerCausality:
		return true
	default:
		return false
	}
}
