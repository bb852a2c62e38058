package fix

import (
	"github.com/yaklabco/kotoba/internal/logging"
	"github.com/yaklabco/kotoba/pkg/plugin"
)

// DefaultMaxPasses bounds the apply/re-lint loop. A file needing more passes
// has rules fighting each other; the coordinator gives up with an Error.
const DefaultMaxPasses = 10

// Plan is the outcome of coordinating one file's fixes.
type Plan struct {
	// Accepted are the edits that will be (or were) applied, sorted.
	Accepted []Edit
	// Dropped are edits that lost their conflict set this pass.
	Dropped []Edit
}

// HasChanges reports whether applying the plan would modify the content.
func (p *Plan) HasChanges() bool {
	return len(p.Accepted) > 0
}

// BuildPlan validates and resolves the fixes of a diagnostic set against the
// content, without applying anything. This is the dry-run surface.
func BuildPlan(diags []plugin.Diagnostic, contentLen int) (*Plan, error) {
	edits := CollectEdits(diags)
	if len(edits) == 0 {
		return &Plan{}, nil
	}
	if err := ValidateEdits(edits, contentLen); err != nil {
		return nil, err
	}
	accepted, dropped := Resolve(edits)
	return &Plan{Accepted: accepted, Dropped: dropped}, nil
}

// Relint produces fresh diagnostics for a rewritten buffer, so dropped fixes
// get another chance against the new offsets.
type Relint func(content []byte) ([]plugin.Diagnostic, error)

// Result summarizes a coordinated fix application.
type Result struct {
	// Content is the final buffer.
	Content []byte
	// Passes is the number of apply passes performed.
	Passes int
	// Applied is the total number of edits committed across passes.
	Applied int
	// Modified reports whether Content differs from the input.
	Modified bool
}

// Apply coordinates fixes to completion: plan, apply, re-lint, repeat while
// a pass dropped conflicting edits, up to maxPasses (0 means the default).
// When the pass budget runs out with fixes still pending, the content
// produced so far is returned together with an Error.
func Apply(content []byte, diags []plugin.Diagnostic, relint Relint, maxPasses int) (*Result, error) {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	result := &Result{Content: content}

	for pass := 0; pass < maxPasses; pass++ {
		plan, err := BuildPlan(diags, len(result.Content))
		if err != nil {
			return result, err
		}
		if !plan.HasChanges() {
			return result, nil
		}

		result.Content = ApplyEdits(result.Content, plan.Accepted)
		result.Passes++
		result.Applied += len(plan.Accepted)
		result.Modified = true

		if len(plan.Dropped) == 0 {
			return result, nil
		}
		logging.Default().Debug("fix pass dropped conflicting edits",
			"pass", result.Passes,
			"dropped", len(plan.Dropped))

		diags, err = relint(result.Content)
		if err != nil {
			return result, &Error{Reason: "re-lint after fix pass", Err: err}
		}
	}

	// A final plan decides whether we actually converged on the last pass.
	plan, err := BuildPlan(diags, len(result.Content))
	if err != nil {
		return result, err
	}
	if plan.HasChanges() {
		return result, &Error{Reason: "fixes did not converge within pass limit"}
	}
	return result, nil
}
