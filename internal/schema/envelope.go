package schema

import (
	"fmt"

	"github.com/plcforge/plcc/internal/diag"
)

// DiagnosticRecord is the JSON-stable shape of a single diag.Diagnostic,
// flattening Position and naming Stage so the envelope survives across
// versions of the in-memory type.
type DiagnosticRecord struct {
	Schema     string   `json:"schema"`
	Checker    string   `json:"checker"`
	Stage      string   `json:"stage"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Title      string   `json:"title"`
	Reason     string   `json:"reason"`
	Details    []string `json:"details,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// DiagnosticsEnvelope is the top-level JSON document `plcc check --json`
// writes to stdout, one record per merged diagnostic in pipeline order.
type DiagnosticsEnvelope struct {
	Schema      string             `json:"schema"`
	Diagnostics []DiagnosticRecord `json:"diagnostics"`
}

// EncodeDiagnostics renders a merged diagnostic list as deterministic,
// schema-versioned JSON (spec.md §6's downstream artifact).
func EncodeDiagnostics(diags []*diag.Diagnostic, lang diag.Language) ([]byte, error) {
	records := make([]DiagnosticRecord, len(diags))
	for i, d := range diags {
		records[i] = DiagnosticRecord{
			Schema:     DiagnosticsV1,
			Checker:    d.Checker,
			Stage:      d.Stage.String(),
			File:       d.Pos.File,
			Line:       d.Pos.Line,
			Column:     d.Pos.Column,
			Title:      diag.Title(lang, d.Title),
			Reason:     d.Reason,
			Details:    d.Details,
			Suggestion: d.Suggestion,
		}
	}
	envelope := DiagnosticsEnvelope{Schema: DiagnosticsV1, Diagnostics: records}

	data, err := MarshalDeterministic(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode diagnostics: %w", err)
	}
	return FormatJSON(data)
}

// SummaryEnvelope is the top-level JSON document for a verification
// summary: one level per verifier plus the per-phase timing breakdown, in
// the shape `plcc check --json` writes after the diagnostics envelope.
type SummaryEnvelope struct {
	Schema       string           `json:"schema"`
	Safety       SafetySummary    `json:"safety"`
	Liveness     string           `json:"liveness"`
	Timing       string           `json:"timing"`
	Causality    string           `json:"causality"`
	PhaseTimings map[string]int64 `json:"phase_timings_ms"`
}

// SafetySummary is the JSON-stable shape of the Safety verifier's entry,
// carrying its extra bounded-model-checking bookkeeping.
type SafetySummary struct {
	Level         string   `json:"level"`
	ExploredDepth int      `json:"explored_depth"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Stringer is the minimal interface the four verification levels
// (verify.SafetyLevel, verify.LivenessLevel, ...) satisfy, letting this
// package encode them without importing the verify package directly.
type Stringer interface {
	String() string
}

// EncodeSummary renders a verification summary as deterministic,
// schema-versioned JSON. Callers pass each verifier's result through its own
// String() method so this package stays independent of the verify package's
// concrete level types.
func EncodeSummary(safetyLevel Stringer, exploredDepth int, warnings []string, liveness, timing, causality Stringer, phaseTimings map[string]int64) ([]byte, error) {
	envelope := SummaryEnvelope{
		Schema: SummaryV1,
		Safety: SafetySummary{
			Level:         safetyLevel.String(),
			ExploredDepth: exploredDepth,
			Warnings:      warnings,
		},
		Liveness:     liveness.String(),
		Timing:       timing.String(),
		Causality:    causality.String(),
		PhaseTimings: phaseTimings,
	}

	data, err := MarshalDeterministic(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	return FormatJSON(data)
}
