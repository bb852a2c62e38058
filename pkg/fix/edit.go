// Package fix turns diagnostics' fixes into a safe, deterministic edit plan
// and applies it. Overlapping fixes form conflict sets from which exactly one
// winner is chosen; application repeats on the rewritten buffer until a pass
// drops nothing, bounded by a safety limit.
package fix

import (
	"fmt"
	"sort"

	"github.com/yaklabco/kotoba/pkg/ast"
	"github.com/yaklabco/kotoba/pkg/plugin"
)

// Edit is one pending text replacement, tagged with the rule that proposed
// it so conflict resolution is deterministic.
type Edit struct {
	Span   ast.Span
	Text   string
	RuleID string
}

// CollectEdits extracts the edits from every diagnostic carrying a fix.
func CollectEdits(diags []plugin.Diagnostic) []Edit {
	var out []Edit
	for i := range diags {
		if diags[i].Fix == nil {
			continue
		}
		out = append(out, Edit{
			Span:   diags[i].Fix.Span,
			Text:   diags[i].Fix.Text,
			RuleID: diags[i].RuleID,
		})
	}
	return out
}

// Error is a fix coordination failure. Fixes for the file are skipped; the
// diagnostics themselves are still reported.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fix: %s: %v", e.Reason, e.Err)
	}
	return "fix: " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidateEdits checks every edit's span against the content length.
func ValidateEdits(edits []Edit, contentLen int) error {
	for _, e := range edits {
		if e.Span.Start > e.Span.End {
			return &Error{Reason: fmt.Sprintf("edit %s is inverted", e.Span)}
		}
		if int(e.Span.End) > contentLen {
			return &Error{Reason: fmt.Sprintf(
				"edit %s exceeds content length %d", e.Span, contentLen)}
		}
	}
	return nil
}

// SortEdits orders edits by start, then span length, then rule id. This is
// the resolution order inside conflict sets and the application order
// (applied back to front). The replacement text is the final tie-break so
// the order is total and independent of input order.
func SortEdits(edits []Edit) {
	sort.Slice(edits, func(i, j int) bool {
		a, b := edits[i], edits[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Span.Len() != b.Span.Len() {
			return a.Span.Len() < b.Span.Len()
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Text < b.Text
	})
}

// overlaps reports whether two edits invalidate each other: their spans share
// bytes, or a zero-width edit sits strictly inside the other's replacement
// region.
func overlaps(a, b Edit) bool {
	if a.Span.Overlaps(b.Span) {
		return true
	}
	// A zero-width insertion strictly inside a replaced range is rewritten
	// away by it.
	if a.Span.IsEmpty() && b.Span.Start < a.Span.Start && a.Span.Start < b.Span.End {
		return true
	}
	if b.Span.IsEmpty() && a.Span.Start < b.Span.Start && b.Span.Start < a.Span.End {
		return true
	}
	return false
}

// Resolve partitions sorted edits into accepted winners and dropped losers.
// Mutually overlapping edits form a conflict set (overlap is chained: a–b and
// b–c put a, b, c in one set); the winner is the first in sort order, i.e.
// earliest start, then shortest span, then lowest rule id.
func Resolve(edits []Edit) (accepted, dropped []Edit) {
	if len(edits) == 0 {
		return nil, nil
	}

	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	SortEdits(sorted)

	i := 0
	for i < len(sorted) {
		// Grow the conflict set while members keep chaining overlaps.
		j := i + 1
		maxEnd := sorted[i].Span.End
		for j < len(sorted) {
			if !overlapsRange(sorted[j], sorted[i].Span.Start, maxEnd) {
				break
			}
			if sorted[j].Span.End > maxEnd {
				maxEnd = sorted[j].Span.End
			}
			j++
		}

		// sorted[i] is the deterministic winner of the set [i, j).
		accepted = append(accepted, sorted[i])
		dropped = append(dropped, sorted[i+1:j]...)
		i = j
	}
	return accepted, dropped
}

// overlapsRange reports whether e conflicts with the running set interval
// [start, end).
func overlapsRange(e Edit, start, end uint32) bool {
	set := Edit{Span: ast.NewSpan(start, end)}
	return overlaps(e, set)
}

// ApplyEdits rewrites content with the accepted edits, which must be sorted
// ascending and conflict-free. Edits commit in reverse start order so earlier
// offsets stay valid while later ones change.
func ApplyEdits(content []byte, accepted []Edit) []byte {
	if len(accepted) == 0 {
		return content
	}

	out := make([]byte, len(content))
	copy(out, content)
	for i := len(accepted) - 1; i >= 0; i-- {
		e := accepted[i]
		var next []byte
		next = append(next, out[:e.Span.Start]...)
		next = append(next, e.Text...)
		next = append(next, out[e.Span.End:]...)
		out = next
	}
	return out
}
