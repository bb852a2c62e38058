package pretty

import (
	"fmt"
	"strings"

	"github.com/yaklabco/kotoba/pkg/runner"
)

// FormatSummary renders run statistics as a single closing line.
// Example: "12 issues (8 errors, 4 warnings) in 3 files, 6 fixable".
func (s *Styles) FormatSummary(stats runner.Stats) string {
	if stats.DiagnosticsTotal == 0 {
		msg := s.Success.Render("No issues found") +
			s.Dim.Render(fmt.Sprintf(" (%d files checked)", stats.FilesProcessed))
		if stats.FixesApplied > 0 {
			msg += ", " + s.Success.Render(fmt.Sprintf("%d fixed in %d %s",
				stats.FixesApplied, stats.FilesModified, pluralize("file", stats.FilesModified)))
		}
		return msg + "\n"
	}

	var severityParts []string
	if n := stats.DiagnosticsBySeverity["error"]; n > 0 {
		severityParts = append(severityParts, s.Error.Render(fmt.Sprintf("%d errors", n)))
	}
	if n := stats.DiagnosticsBySeverity["warning"]; n > 0 {
		severityParts = append(severityParts, s.Warning.Render(fmt.Sprintf("%d warnings", n)))
	}
	if n := stats.DiagnosticsBySeverity["info"]; n > 0 {
		severityParts = append(severityParts, s.Info.Render(fmt.Sprintf("%d info", n)))
	}

	line := s.Bold.Render(fmt.Sprintf("%d %s",
		stats.DiagnosticsTotal, pluralize("issue", stats.DiagnosticsTotal)))
	if len(severityParts) > 0 {
		line += " (" + strings.Join(severityParts, ", ") + ")"
	}
	line += fmt.Sprintf(" in %d %s",
		stats.FilesWithIssues, pluralize("file", stats.FilesWithIssues))

	if stats.DiagnosticsFixable > 0 {
		line += ", " + s.SummaryValue.Render(fmt.Sprintf("%d fixable", stats.DiagnosticsFixable))
	}
	if stats.FixesApplied > 0 {
		line += ", " + s.Success.Render(fmt.Sprintf("%d fixed", stats.FixesApplied))
	}
	if stats.FilesFromCache > 0 {
		line += s.Dim.Render(fmt.Sprintf(" [%d cached]", stats.FilesFromCache))
	}
	if stats.FilesFailed > 0 {
		line += ", " + s.Failure.Render(fmt.Sprintf("%d failed", stats.FilesFailed))
	}

	return line + "\n"
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
