// Package reporter renders run results for callers: plain or styled text,
// JSON, and SARIF. The core produces structured results; everything here is
// presentation.
package reporter

import (
	"fmt"
	"io"
)

// Format selects an output renderer.
type Format string

// Supported output formats.
const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
)

// ParseFormat resolves a format name, defaulting empty to text.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatSARIF:
		return FormatSARIF, nil
	default:
		return "", fmt.Errorf("unknown output format %q", name)
	}
}

// Options configures a reporter.
type Options struct {
	// Format selects the renderer.
	Format Format

	// Color is "auto", "always", or "never"; only the text renderer uses it.
	Color string

	// ShowTimings includes per-rule timings when the run collected them.
	ShowTimings bool

	// ToolVersion is stamped into SARIF output.
	ToolVersion string
}

// New creates a reporter writing to w.
func New(w io.Writer, opts Options) (Reporter, error) {
	switch opts.Format {
	case "", FormatText:
		return newTextReporter(w, opts), nil
	case FormatJSON:
		return newJSONReporter(w), nil
	case FormatSARIF:
		return newSARIFReporter(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", opts.Format)
	}
}
