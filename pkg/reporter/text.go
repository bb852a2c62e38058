package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/yaklabco/kotoba/internal/ui/pretty"
	"github.com/yaklabco/kotoba/pkg/fix"
	"github.com/yaklabco/kotoba/pkg/runner"
)

// Reporter renders a run result to its writer.
type Reporter interface {
	Report(result *runner.Result) error
}

// textReporter writes human-readable output, styled when the destination is
// a terminal.
type textReporter struct {
	w      io.Writer
	styles *pretty.Styles
	opts   Options
}

func newTextReporter(w io.Writer, opts Options) *textReporter {
	return &textReporter{
		w:      w,
		styles: pretty.NewStyles(pretty.IsColorEnabled(opts.Color, w)),
		opts:   opts,
	}
}

// Report implements Reporter.
func (r *textReporter) Report(result *runner.Result) error {
	for _, outcome := range result.Files {
		if outcome.Failure != nil {
			if _, err := fmt.Fprintf(r.w, "  %s  %s\n",
				r.styles.FilePath.Render(outcome.Path),
				r.styles.Failure.Render(outcome.Failure.Err.Error())); err != nil {
				return err
			}
			continue
		}
		res := outcome.Result
		if res == nil {
			continue
		}
		for i := range res.Diagnostics {
			if _, err := io.WriteString(r.w,
				r.styles.FormatDiagnostic(outcome.Path, &res.Diagnostics[i])); err != nil {
				return err
			}
		}
		for _, ruleErr := range res.RuleErrors {
			if _, err := io.WriteString(r.w,
				r.styles.FormatRuleError(outcome.Path, ruleErr)); err != nil {
				return err
			}
		}
		if outcome.Fixes != nil && outcome.Fixes.Diff != nil {
			if err := r.writeDiff(outcome); err != nil {
				return err
			}
		}
	}

	if r.opts.ShowTimings {
		if err := r.writeTimings(result); err != nil {
			return err
		}
	}

	if result.Stats.DiagnosticsTotal > 0 {
		width := min(pretty.TerminalWidth(r.w, 60), 80)
		divider := r.styles.Dim.Render(strings.Repeat("─", width))
		if _, err := fmt.Fprintln(r.w, divider); err != nil {
			return err
		}
	}
	_, err := io.WriteString(r.w, r.styles.FormatSummary(result.Stats))
	return err
}

// writeDiff renders a dry-run diff.
func (r *textReporter) writeDiff(outcome *runner.FileOutcome) error {
	diff := outcome.Fixes.Diff
	if _, err := fmt.Fprintln(r.w, r.styles.DiffHeader.Render("--- "+outcome.Path)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(r.w, r.styles.DiffHeader.Render("+++ "+outcome.Path+" (fixed)")); err != nil {
		return err
	}
	for _, hunk := range diff.Hunks {
		header := fmt.Sprintf("@@ -%d,%d +%d,%d @@",
			hunk.OriginalStart, hunk.OriginalCount, hunk.ModifiedStart, hunk.ModifiedCount)
		if _, err := fmt.Fprintln(r.w, r.styles.DiffHunk.Render(header)); err != nil {
			return err
		}
		for _, line := range hunk.Lines {
			var rendered string
			switch line.Kind {
			case fix.DiffLineAdd:
				rendered = r.styles.DiffAdd.Render("+" + line.Content)
			case fix.DiffLineRemove:
				rendered = r.styles.DiffRemove.Render("-" + line.Content)
			default:
				rendered = r.styles.DiffContext.Render(" " + line.Content)
			}
			if _, err := fmt.Fprintln(r.w, rendered); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeTimings renders accumulated per-rule wall clock, slowest first.
func (r *textReporter) writeTimings(result *runner.Result) error {
	totals := make(map[string]int64)
	for _, outcome := range result.Files {
		if outcome.Result == nil || outcome.Result.Timings == nil {
			continue
		}
		for rule, d := range outcome.Result.Timings.Rules {
			totals[rule] += int64(d)
		}
	}
	if len(totals) == 0 {
		return nil
	}

	type ruleTime struct {
		rule string
		ns   int64
	}
	sorted := make([]ruleTime, 0, len(totals))
	for rule, ns := range totals {
		sorted = append(sorted, ruleTime{rule, ns})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ns > sorted[j].ns })

	if _, err := fmt.Fprintln(r.w, r.styles.SummaryTitle.Render("Rule timings:")); err != nil {
		return err
	}
	for _, rt := range sorted {
		if _, err := fmt.Fprintf(r.w, "  %-30s %.2fms\n",
			rt.rule, float64(rt.ns)/1e6); err != nil {
			return err
		}
	}
	return nil
}
