package pretty

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yaklabco/kotoba/pkg/ast"
	"github.com/yaklabco/kotoba/pkg/plugin"
	"github.com/yaklabco/kotoba/pkg/runner"
)

func TestFormatDiagnosticPlain(t *testing.T) {
	s := NewStyles(false)

	d := plugin.Diagnostic{
		RuleID:   "no-todo",
		Message:  "found TODO",
		Span:     ast.NewSpan(9, 13),
		Severity: plugin.SeverityWarning,
	}
	out := s.FormatDiagnostic("docs/a.md", &d)
	assert.Contains(t, out, "docs/a.md:9-13")
	assert.Contains(t, out, "warning")
	assert.Contains(t, out, "found TODO")
	assert.Contains(t, out, "(no-todo)")
	assert.NotContains(t, out, "[fixable]")

	d.Fix = &plugin.Fix{Span: d.Span}
	d.Loc = &ast.Location{Start: ast.Position{Line: 3, Column: 4}}
	out = s.FormatDiagnostic("docs/a.md", &d)
	assert.Contains(t, out, "docs/a.md:3:4")
	assert.Contains(t, out, "[fixable]")
}

func TestFormatSeverity(t *testing.T) {
	s := NewStyles(false)
	assert.Equal(t, "error", s.FormatSeverity(plugin.SeverityError))
	assert.Equal(t, "warning", s.FormatSeverity(plugin.SeverityWarning))
	assert.Equal(t, "info", s.FormatSeverity(plugin.SeverityInfo))
	assert.Equal(t, "odd", s.FormatSeverity(plugin.Severity("odd")))
}

func TestFormatSummary(t *testing.T) {
	s := NewStyles(false)

	empty := runner.Stats{FilesProcessed: 4, DiagnosticsBySeverity: map[string]int{}}
	assert.Contains(t, s.FormatSummary(empty), "No issues found")

	stats := runner.Stats{
		FilesProcessed:     3,
		FilesWithIssues:    2,
		DiagnosticsTotal:   5,
		DiagnosticsFixable: 2,
		FilesFromCache:     1,
		DiagnosticsBySeverity: map[string]int{
			"error":   1,
			"warning": 4,
		},
	}
	out := s.FormatSummary(stats)
	assert.Contains(t, out, "5 issues")
	assert.Contains(t, out, "1 errors")
	assert.Contains(t, out, "4 warnings")
	assert.Contains(t, out, "2 files")
	assert.Contains(t, out, "2 fixable")
	assert.Contains(t, out, "[1 cached]")
}

func TestIsColorEnabled(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, IsColorEnabled("always", &buf))
	assert.False(t, IsColorEnabled("never", &buf))
	// A plain buffer is not a TTY.
	assert.False(t, IsColorEnabled("auto", &buf))
}

func TestTerminalWidthFallback(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 72, TerminalWidth(&buf, 72))
}
