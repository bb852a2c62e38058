package plugintest

import (
	"encoding/json"
	"strings"

	"github.com/yaklabco/kotoba/pkg/ast"
	"github.com/yaklabco/kotoba/pkg/plugin"
)

// SubstringRule scripts a rule flagging every occurrence of needle within
// the nodes it receives, in the style of a no-todo rule. When replacement is
// non-nil the diagnostics carry fixes substituting the needle.
func SubstringRule(name, needle string, isolation plugin.IsolationLevel, replacement *string) *Module {
	return &Module{
		Manifest: plugin.Manifest{
			Name:           name,
			Version:        "1.0.0",
			Description:    "flags " + needle,
			Fixable:        replacement != nil,
			IsolationLevel: isolation,
		},
		Lint: func(req *Request) ([]plugin.Diagnostic, error) {
			var out []plugin.Diagnostic
			for _, raw := range req.Nodes {
				var node struct {
					Range [2]uint32 `json:"range"`
				}
				if err := json.Unmarshal(raw, &node); err != nil {
					return nil, err
				}
				lo, hi := int(node.Range[0]), int(node.Range[1])
				if lo > len(req.Source) || hi > len(req.Source) || lo > hi {
					continue
				}
				offset := lo
				for offset < hi {
					i := strings.Index(req.Source[offset:hi], needle)
					if i < 0 {
						break
					}
					start := uint32(offset + i)
					span := ast.NewSpan(start, start+uint32(len(needle)))
					d := plugin.Diagnostic{
						Message:  "found " + needle,
						Span:     span,
						Severity: plugin.SeverityWarning,
					}
					if replacement != nil {
						d.Fix = &plugin.Fix{Span: span, Text: *replacement}
					}
					out = append(out, d)
					offset = int(span.End)
				}
			}
			return out, nil
		},
	}
}

// FailingRule scripts a rule whose every lint call fails with the given
// error kind.
func FailingRule(name string, kind plugin.ErrorKind) *Module {
	return &Module{
		Manifest: plugin.Manifest{
			Name:    name,
			Version: "1.0.0",
		},
		RawLint: func([]byte) ([]byte, error) {
			return nil, &plugin.RuleError{Kind: kind, Err: errFailing}
		},
	}
}

var errFailing = &failingErr{}

type failingErr struct{}

func (*failingErr) Error() string { return "scripted failure" }
