package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/yaklabco/kotoba/internal/logging"
	"github.com/yaklabco/kotoba/pkg/ast"
)

// PluginHost owns a set of loaded rules keyed by driver alias and dispatches
// lint calls to them. A host is single-threaded; the driver pools one host
// per worker.
type PluginHost struct {
	exec   Executor
	limits Limits
	rules  map[string]*hostRule
	// order preserves load order for deterministic RunAllRules output.
	order []string
}

type hostRule struct {
	alias    string
	handle   Handle
	manifest *Manifest
	config   json.RawMessage
}

// NewHost creates a host over the build's default executor.
func NewHost() *PluginHost {
	return NewHostWithExecutor(NewDefaultExecutor(), Limits{})
}

// NewHostWithExecutor creates a host with an explicit executor and limits,
// used by the driver and by tests.
func NewHostWithExecutor(exec Executor, limits Limits) *PluginHost {
	return &PluginHost{
		exec:   exec,
		limits: limits.withDefaults(),
		rules:  make(map[string]*hostRule),
	}
}

// LoadRule loads a rule module under the given alias. The alias, not the
// module's self-reported name, identifies the rule in every diagnostic.
func (h *PluginHost) LoadRule(ctx context.Context, alias string, wasm []byte) (*Manifest, error) {
	if _, exists := h.rules[alias]; exists {
		return nil, ruleErr(ErrLoadFailure, alias, "alias already loaded")
	}

	handle, err := h.exec.Load(ctx, wasm, h.limits)
	if err != nil {
		return nil, tagRule(err, alias)
	}

	raw, err := h.exec.GetManifest(ctx, handle)
	if err != nil {
		h.exec.Unload(handle)
		return nil, tagRule(err, alias)
	}
	manifest, err := ParseManifest(raw)
	if err != nil {
		h.exec.Unload(handle)
		return nil, tagRule(err, alias)
	}

	logging.Default().Debug("loaded rule",
		logging.FieldRule, alias,
		logging.FieldVersion, manifest.Version)

	h.rules[alias] = &hostRule{alias: alias, handle: handle, manifest: manifest}
	h.order = append(h.order, alias)
	return manifest, nil
}

// LoadRuleFile loads a rule module from a WASM file.
func (h *PluginHost) LoadRuleFile(ctx context.Context, alias, path string) (*Manifest, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, ruleErr(ErrLoadFailure, alias, "read %s: %v", path, err)
	}
	return h.LoadRule(ctx, alias, wasm)
}

// ConfigureRule hands a configuration value to a loaded rule. The value is
// also echoed in every lint request.
func (h *PluginHost) ConfigureRule(ctx context.Context, alias string, config json.RawMessage) error {
	r, ok := h.rules[alias]
	if !ok {
		return ruleErr(ErrNotFound, alias, "not loaded")
	}
	if len(config) > 0 {
		if err := h.exec.Configure(ctx, r.handle, config); err != nil {
			return tagRule(err, alias)
		}
	}
	r.config = config
	return nil
}

// UnloadRule removes a rule. It reports whether the alias was loaded.
func (h *PluginHost) UnloadRule(alias string) bool {
	r, ok := h.rules[alias]
	if !ok {
		return false
	}
	h.exec.Unload(r.handle)
	delete(h.rules, alias)
	for i, a := range h.order {
		if a == alias {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return true
}

// Manifest returns the manifest of a loaded rule, or nil.
func (h *PluginHost) Manifest(alias string) *Manifest {
	if r, ok := h.rules[alias]; ok {
		return r.manifest
	}
	return nil
}

// Aliases lists loaded rules in load order.
func (h *PluginHost) Aliases() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// RuleCount returns the number of loaded rules.
func (h *PluginHost) RuleCount() int {
	return len(h.rules)
}

// RunRule invokes one rule over the payload's node batch. Nodes the rule did
// not ask for are filtered out first; an empty intersection short-circuits to
// no diagnostics without entering the sandbox. When within is non-nil the
// rule ran in block isolation: a diagnostic outside that span is dropped and
// reported as a protocol violation alongside the surviving ones.
func (h *PluginHost) RunRule(ctx context.Context, alias string, payload *RequestPayload, within *ast.Span) ([]Diagnostic, error) {
	r, ok := h.rules[alias]
	if !ok {
		return nil, ruleErr(ErrNotFound, alias, "not loaded")
	}

	if len(r.manifest.NodeTypes) > 0 && len(payload.FilterNodes(r.manifest)) == 0 {
		return nil, nil
	}

	enc := r.manifest.Encoding
	if enc == "" {
		enc = EncodingJSON
	}
	request, err := payload.EncodeRequest(r.manifest, r.config, enc)
	if err != nil {
		return nil, ruleErr(ErrProtocolViolation, alias, "encode request: %v", err)
	}

	response, err := h.exec.Lint(ctx, r.handle, request)
	if err != nil {
		return nil, tagRule(err, alias)
	}
	resp, err := DecodeResponse(response, enc)
	if err != nil {
		return nil, ruleErr(ErrProtocolViolation, alias, "decode response: %v", err)
	}

	return h.sanitize(r, resp.Diagnostics, payload, within)
}

// sanitize stamps, defaults, and bounds-checks diagnostics from a rule.
func (h *PluginHost) sanitize(r *hostRule, diags []Diagnostic, payload *RequestPayload, within *ast.Span) ([]Diagnostic, error) {
	srcLen := uint32(len(payload.Source))
	fileSpan := ast.NewSpan(0, srcLen)

	var violation error
	out := diags[:0]
	for _, d := range diags {
		// The module's self-reported id is ignored.
		d.RuleID = r.alias
		if !d.Severity.Valid() {
			d.Severity = SeverityError
		}
		if d.Span.Start > d.Span.End || !fileSpan.Contains(d.Span) {
			violation = ruleErr(ErrProtocolViolation, r.alias,
				"diagnostic span %s outside source (%d bytes)", d.Span, srcLen)
			continue
		}
		if within != nil && !within.Contains(d.Span) {
			violation = ruleErr(ErrProtocolViolation, r.alias,
				"block-isolated rule reported span %s outside block %s", d.Span, *within)
			continue
		}
		if d.Fix != nil && (d.Fix.Span.Start > d.Fix.Span.End || !fileSpan.Contains(d.Fix.Span)) {
			violation = ruleErr(ErrProtocolViolation, r.alias,
				"fix span %s outside source", d.Fix.Span)
			continue
		}
		if d.Fix != nil && !r.manifest.Fixable {
			// Rules that did not declare fixable do not get to fix.
			d.Fix = nil
		}
		out = append(out, d)
	}
	return out, violation
}

// RunAllRules invokes every loaded rule over the payload, in load order.
// Failures are contained per rule and returned alongside the diagnostics of
// the rules that succeeded.
func (h *PluginHost) RunAllRules(ctx context.Context, payload *RequestPayload) ([]Diagnostic, []*RuleError) {
	var all []Diagnostic
	var failures []*RuleError

	for _, alias := range h.order {
		diags, err := h.RunRule(ctx, alias, payload, nil)
		all = append(all, diags...)
		if err != nil {
			failures = append(failures, AsRuleError(err, alias))
			logging.Default().Warn("rule failed",
				logging.FieldRule, alias,
				logging.FieldError, err)
		}
	}
	return all, failures
}

// Close unloads everything and releases the executor.
func (h *PluginHost) Close() {
	for _, r := range h.rules {
		h.exec.Unload(r.handle)
	}
	h.rules = make(map[string]*hostRule)
	h.order = nil
	h.exec.Close()
}

// tagRule attaches the alias to a RuleError that lacks one.
func tagRule(err error, alias string) error {
	if re, ok := err.(*RuleError); ok && re.Rule == "" {
		re.Rule = alias
	}
	return err
}

// AsRuleError coerces any failure into a RuleError for reporting.
func AsRuleError(err error, alias string) *RuleError {
	if re, ok := err.(*RuleError); ok {
		return re
	}
	return &RuleError{Kind: ErrTrap, Rule: alias, Err: fmt.Errorf("%w", err)}
}
