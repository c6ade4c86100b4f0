package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Position is a 1-based source location. Column defaults to 1 when the
// producing stage has no finer-grained information.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	col := p.Column
	if col == 0 {
		col = 1
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, col)
}

// Diagnostic is the single structured error/warning value produced by every
// IR builder and verifier.
type Diagnostic struct {
	Checker    string
	Stage      Stage
	Seq        int // insertion order within stage, assigned by a Bag
	Pos        Position
	Title      string
	Reason     string
	Details    []string
	Suggestion string
}

// Render produces the stable textual rendering from the diagnostic surface:
//
//	ERROR [<checker>] <localized title>
//	  位置: <file>:<line>:<column>
//	  原因: <reason>
//	  分析: <detail>            (one line per detail)
//	  建议: <suggestion>
func (d *Diagnostic) Render(lang Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ERROR [%s] %s\n", d.Checker, localize(lang, d.Title))
	fmt.Fprintf(&b, "  %s: %s\n", localize(lang, msgPosition), d.Pos.String())
	fmt.Fprintf(&b, "  %s: %s\n", localize(lang, msgReason), d.Reason)
	for _, line := range d.Details {
		fmt.Fprintf(&b, "  %s: %s\n", localize(lang, msgAnalysis), line)
	}
	if d.Suggestion != "" {
		fmt.Fprintf(&b, "  %s: %s\n", localize(lang, msgSuggestion), d.Suggestion)
	}
	return b.String()
}

// Bag accumulates diagnostics for a single builder or verifier stage,
// stamping each with a monotonically increasing sequence number so the
// pipeline driver can sort the merged list deterministically.
type Bag struct {
	stage Stage
	items []*Diagnostic
}

// NewBag creates a diagnostic accumulator for the given pipeline stage.
func NewBag(stage Stage) *Bag {
	return &Bag{stage: stage}
}

// Add appends a diagnostic, filling in Stage and Seq.
func (b *Bag) Add(d *Diagnostic) {
	d.Stage = b.stage
	d.Seq = len(b.items)
	b.items = append(b.items, d)
}

// Errorf is a convenience constructor + Add in one call.
func (b *Bag) Errorf(checker string, pos Position, title, reason string, details []string, suggestion string) {
	b.Add(&Diagnostic{
		Checker:    checker,
		Pos:        pos,
		Title:      title,
		Reason:     reason,
		Details:    details,
		Suggestion: suggestion,
	})
}

// Items returns the accumulated diagnostics, in insertion order.
func (b *Bag) Items() []*Diagnostic { return b.items }

// Empty reports whether no diagnostics were accumulated.
func (b *Bag) Empty() bool { return len(b.items) == 0 }

// Merge produces a single list ordered by stage, then by insertion order
// within stage, satisfying the driver's determinism requirement (spec §5).
func Merge(bags ...*Bag) []*Diagnostic {
	var all []*Diagnostic
	for _, bag := range bags {
		all = append(all, bag.items...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Stage != all[j].Stage {
			return all[i].Stage < all[j].Stage
		}
		return all[i].Seq < all[j].Seq
	})
	return all
}
