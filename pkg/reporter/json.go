package reporter

import (
	"encoding/json"
	"io"

	"github.com/yaklabco/kotoba/pkg/lint"
	"github.com/yaklabco/kotoba/pkg/runner"
)

// jsonReporter emits the run as one JSON document.
type jsonReporter struct {
	w io.Writer
}

func newJSONReporter(w io.Writer) *jsonReporter {
	return &jsonReporter{w: w}
}

// jsonOutput is the stable top-level JSON shape.
type jsonOutput struct {
	Files    []*lint.FileResult `json:"files"`
	Failures []jsonFailure      `json:"failures,omitempty"`
	Summary  jsonSummary        `json:"summary"`
}

type jsonFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type jsonSummary struct {
	FilesDiscovered  int            `json:"files_discovered"`
	FilesProcessed   int            `json:"files_processed"`
	FilesFailed      int            `json:"files_failed"`
	FilesFromCache   int            `json:"files_from_cache"`
	DiagnosticsTotal int            `json:"diagnostics_total"`
	BySeverity       map[string]int `json:"by_severity"`
	FixesApplied     int            `json:"fixes_applied,omitempty"`
}

// Report implements Reporter.
func (r *jsonReporter) Report(result *runner.Result) error {
	out := jsonOutput{
		Files: make([]*lint.FileResult, 0, len(result.Files)),
		Summary: jsonSummary{
			FilesDiscovered:  result.Stats.FilesDiscovered,
			FilesProcessed:   result.Stats.FilesProcessed,
			FilesFailed:      result.Stats.FilesFailed,
			FilesFromCache:   result.Stats.FilesFromCache,
			DiagnosticsTotal: result.Stats.DiagnosticsTotal,
			BySeverity:       result.Stats.DiagnosticsBySeverity,
			FixesApplied:     result.Stats.FixesApplied,
		},
	}
	for _, outcome := range result.Files {
		if outcome.Result != nil {
			out.Files = append(out.Files, outcome.Result)
		}
	}
	for _, failure := range result.Failures {
		out.Failures = append(out.Failures, jsonFailure{
			Path:  failure.Path,
			Error: failure.Err.Error(),
		})
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}
