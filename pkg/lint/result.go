// Package lint implements the per-file pipeline: hashing, cache consultation,
// parsing, rule filtering, analysis, block reconciliation, rule dispatch, and
// result assembly. Multi-file orchestration lives in pkg/runner.
package lint

import (
	"time"

	"github.com/yaklabco/kotoba/pkg/plugin"
)

// Timings accumulates wall-clock per rule and per pipeline phase. Only
// populated when timings are enabled in the configuration.
type Timings struct {
	Rules  map[string]time.Duration `json:"rules,omitempty"`
	Phases map[string]time.Duration `json:"phases,omitempty"`
}

func newTimings() *Timings {
	return &Timings{
		Rules:  make(map[string]time.Duration),
		Phases: make(map[string]time.Duration),
	}
}

// addRule accumulates time against a rule alias.
func (t *Timings) addRule(alias string, d time.Duration) {
	if t != nil {
		t.Rules[alias] += d
	}
}

// addPhase accumulates time against a pipeline phase.
func (t *Timings) addPhase(phase string, d time.Duration) {
	if t != nil {
		t.Phases[phase] += d
	}
}

// Pipeline phase names used in Timings.Phases.
const (
	PhaseParse    = "parse"
	PhaseAnalysis = "analysis"
	PhaseCache    = "cache"
	PhaseRules    = "rules"
	PhaseAssemble = "assemble"
)

// FileResult is the outcome of linting one file successfully. Rule failures
// are contained: they appear in RuleErrors while the diagnostics of the
// other rules are still returned.
type FileResult struct {
	// Path is the linted file.
	Path string `json:"path"`

	// Diagnostics are sorted by (span start, rule id).
	Diagnostics []plugin.Diagnostic `json:"diagnostics"`

	// RuleErrors records per-rule failures for this file.
	RuleErrors []*plugin.RuleError `json:"-"`

	// FromCache is true when the result came from a full file-level hit.
	FromCache bool `json:"from_cache"`

	// Timings is present when timing collection was enabled.
	Timings *Timings `json:"timings,omitempty"`
}

// HasIssues reports whether any diagnostics were found.
func (r *FileResult) HasIssues() bool {
	return len(r.Diagnostics) > 0
}

// ErrorCount returns the number of error-severity diagnostics.
func (r *FileResult) ErrorCount() int {
	count := 0
	for i := range r.Diagnostics {
		if r.Diagnostics[i].Severity == plugin.SeverityError {
			count++
		}
	}
	return count
}

// FixableCount returns the number of diagnostics carrying fixes.
func (r *FileResult) FixableCount() int {
	count := 0
	for i := range r.Diagnostics {
		if r.Diagnostics[i].HasFix() {
			count++
		}
	}
	return count
}

// FileFailure marks a file that could not be linted at all (unreadable or
// unparseable).
type FileFailure struct {
	Path string `json:"path"`
	Err  error  `json:"error"`
}

func (f *FileFailure) Error() string {
	return f.Path + ": " + f.Err.Error()
}

func (f *FileFailure) Unwrap() error {
	return f.Err
}
