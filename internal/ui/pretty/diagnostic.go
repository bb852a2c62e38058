package pretty

import (
	"fmt"
	"strings"

	"github.com/yaklabco/kotoba/pkg/plugin"
)

// FormatDiagnostic renders one diagnostic for terminal output:
//
//	path:line:col  severity  message  (rule-id)
//
// falling back to byte offsets when no location was derived.
func (s *Styles) FormatDiagnostic(path string, diag *plugin.Diagnostic) string {
	var builder strings.Builder

	location := s.FilePath.Render(path) + s.Location.Render(s.position(diag))
	ruleDisplay := s.RuleID.Render("(" + diag.RuleID + ")")

	builder.WriteString(fmt.Sprintf("  %s  %s  %s  %s",
		location,
		s.FormatSeverity(diag.Severity),
		s.Message.Render(diag.Message),
		ruleDisplay,
	))
	if diag.HasFix() {
		builder.WriteString("  " + s.Dim.Render("[fixable]"))
	}
	builder.WriteByte('\n')

	return builder.String()
}

// position renders the location suffix: line/column when available, else the
// byte span.
func (s *Styles) position(diag *plugin.Diagnostic) string {
	if diag.Loc != nil {
		return fmt.Sprintf(":%d:%d", diag.Loc.Start.Line, diag.Loc.Start.Column)
	}
	return fmt.Sprintf(":%d-%d", diag.Span.Start, diag.Span.End)
}

// FormatSeverity returns a styled severity string.
func (s *Styles) FormatSeverity(sev plugin.Severity) string {
	switch sev {
	case plugin.SeverityError:
		return s.Error.Render("error")
	case plugin.SeverityWarning:
		return s.Warning.Render("warning")
	case plugin.SeverityInfo:
		return s.Info.Render("info")
	default:
		return string(sev)
	}
}

// FormatRuleError renders a contained per-rule failure.
func (s *Styles) FormatRuleError(path string, err *plugin.RuleError) string {
	return fmt.Sprintf("  %s  %s  %s\n",
		s.FilePath.Render(path),
		s.Failure.Render("rule error"),
		s.Dim.Render(err.Error()),
	)
}
