package reporter

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/yaklabco/kotoba/pkg/plugin"
	"github.com/yaklabco/kotoba/pkg/runner"
)

const (
	sarifVersion   = "2.1.0"
	sarifSchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	sarifToolName  = "kotoba"
	sarifToolURI   = "https://github.com/yaklabco/kotoba"
)

// sarifReporter emits SARIF 2.1.0 for code-scanning integrations.
type sarifReporter struct {
	w    io.Writer
	opts Options
}

func newSARIFReporter(w io.Writer, opts Options) *sarifReporter {
	return &sarifReporter{w: w, opts: opts}
}

type sarifOutput struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version,omitempty"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID string `json:"id"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	ByteOffset int `json:"charOffset"`
	ByteLength int `json:"charLength"`
	StartLine  int `json:"startLine,omitempty"`
	StartCol   int `json:"startColumn,omitempty"`
}

// Report implements Reporter.
func (r *sarifReporter) Report(result *runner.Result) error {
	ruleSet := make(map[string]bool)
	var results []sarifResult

	for _, outcome := range result.Files {
		if outcome.Result == nil {
			continue
		}
		for i := range outcome.Result.Diagnostics {
			d := &outcome.Result.Diagnostics[i]
			ruleSet[d.RuleID] = true
			results = append(results, sarifResult{
				RuleID:  d.RuleID,
				Level:   sarifLevel(d.Severity),
				Message: sarifMessage{Text: d.Message},
				Locations: []sarifLocation{{
					PhysicalLocation: sarifPhysicalLocation{
						ArtifactLocation: sarifArtifactLocation{URI: outcome.Path},
						Region:           sarifRegionFor(d),
					},
				}},
			})
		}
	}

	ruleIDs := make([]string, 0, len(ruleSet))
	for id := range ruleSet {
		ruleIDs = append(ruleIDs, id)
	}
	sort.Strings(ruleIDs)
	rules := make([]sarifRule, len(ruleIDs))
	for i, id := range ruleIDs {
		rules[i] = sarifRule{ID: id}
	}

	out := sarifOutput{
		Schema:  sarifSchemaURI,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:           sarifToolName,
				Version:        r.opts.ToolVersion,
				InformationURI: sarifToolURI,
				Rules:          rules,
			}},
			Results: results,
		}},
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}

func sarifRegionFor(d *plugin.Diagnostic) sarifRegion {
	region := sarifRegion{
		ByteOffset: int(d.Span.Start),
		ByteLength: int(d.Span.Len()),
	}
	if d.Loc != nil {
		region.StartLine = d.Loc.Start.Line
		// SARIF columns are 1-based.
		region.StartCol = d.Loc.Start.Column + 1
	}
	return region
}

func sarifLevel(sev plugin.Severity) string {
	switch sev {
	case plugin.SeverityError:
		return "error"
	case plugin.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}
