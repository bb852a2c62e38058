// Package plugin provides the WASM rule host: shared diagnostic types, rule
// manifests, the wire protocol, the executor abstraction, and the PluginHost
// that loads and invokes sandboxed rule modules.
package plugin

import (
	"cmp"

	"github.com/yaklabco/kotoba/pkg/ast"
)

// Severity indicates the importance of a diagnostic.
type Severity string

// Severity levels, most to least important.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Valid reports whether s is one of the known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// Fix is a machine-applicable replacement of a byte span. An empty Text
// deletes the span; an empty span inserts Text at Span.Start.
type Fix struct {
	Span ast.Span `json:"span" msgpack:"span"`
	Text string   `json:"text" msgpack:"text"`
}

// InsertFix creates a fix inserting text at offset.
func InsertFix(offset uint32, text string) *Fix {
	return &Fix{Span: ast.NewSpan(offset, offset), Text: text}
}

// DeleteFix creates a fix removing the span.
func DeleteFix(span ast.Span) *Fix {
	return &Fix{Span: span}
}

// Diagnostic is a single lint finding reported against a byte span of the
// source. Loc is derived lazily and may be nil; Fix is present only when the
// reporting rule is fixable.
type Diagnostic struct {
	RuleID   string        `json:"rule_id" msgpack:"rule_id"`
	Message  string        `json:"message" msgpack:"message"`
	Span     ast.Span      `json:"span" msgpack:"span"`
	Loc      *ast.Location `json:"loc,omitempty" msgpack:"loc,omitempty"`
	Severity Severity      `json:"severity" msgpack:"severity"`
	Fix      *Fix          `json:"fix,omitempty" msgpack:"fix,omitempty"`
}

// HasFix reports whether the diagnostic carries a fix.
func (d *Diagnostic) HasFix() bool {
	return d.Fix != nil
}

// Shift returns a copy moved by delta bytes, including its fix. The location
// is cleared so it is recomputed against the new position on demand.
func (d Diagnostic) Shift(delta int64) Diagnostic {
	d.Span = d.Span.Shift(delta)
	d.Loc = nil
	if d.Fix != nil {
		f := *d.Fix
		f.Span = f.Span.Shift(delta)
		d.Fix = &f
	}
	return d
}

// CompareDiagnostics orders diagnostics by (span start, rule id), the public
// output order, with remaining fields as tie-breakers so sorting is total.
func CompareDiagnostics(a, b Diagnostic) int {
	if c := cmp.Compare(a.Span.Start, b.Span.Start); c != 0 {
		return c
	}
	if c := cmp.Compare(a.RuleID, b.RuleID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Span.End, b.Span.End); c != 0 {
		return c
	}
	return cmp.Compare(a.Message, b.Message)
}

// DiagnosticKey identifies a diagnostic for deduplication across the global
// and block dispatch paths.
type DiagnosticKey struct {
	RuleID  string
	Message string
	Span    ast.Span
}

// Key returns the deduplication key of d.
func (d *Diagnostic) Key() DiagnosticKey {
	return DiagnosticKey{RuleID: d.RuleID, Message: d.Message, Span: d.Span}
}
