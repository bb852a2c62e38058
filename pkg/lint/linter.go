package lint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/yaklabco/kotoba/internal/logging"
	"github.com/yaklabco/kotoba/pkg/ast"
	"github.com/yaklabco/kotoba/pkg/cache"
	"github.com/yaklabco/kotoba/pkg/config"
	"github.com/yaklabco/kotoba/pkg/parser"
	"github.com/yaklabco/kotoba/pkg/parser/markdown"
	"github.com/yaklabco/kotoba/pkg/parser/plaintext"
	"github.com/yaklabco/kotoba/pkg/plugin"
	"github.com/yaklabco/kotoba/pkg/text"
)

// MaxFileSize bounds the files the linter will read.
const MaxFileSize = 10 << 20

// Linter runs the per-file pipeline. It is shared across workers: everything
// mutable per file lives on the stack or in the worker's own PluginHost, and
// the cache store synchronizes internally.
type Linter struct {
	cfg        *config.Config
	configHash cache.Hash
	registry   *parser.Registry
	store      *cache.Store
	tokenizer  *text.Tokenizer
}

// New creates a linter over the given configuration and cache store. The
// tokenizer may be nil when no configured rule needs morphology.
func New(cfg *config.Config, store *cache.Store, tokenizer *text.Tokenizer) *Linter {
	registry := parser.NewRegistry(plaintext.New())
	registry.Register(markdown.New())

	return &Linter{
		cfg:        cfg,
		configHash: cfg.Hash(),
		registry:   registry,
		store:      store,
		tokenizer:  tokenizer,
	}
}

// ConfigHash returns the fingerprint of the effective configuration.
func (l *Linter) ConfigHash() cache.Hash {
	return l.configHash
}

// ruleVersions maps alias to manifest version for every loaded rule.
func ruleVersions(host *plugin.PluginHost) map[string]string {
	out := make(map[string]string)
	for _, alias := range host.Aliases() {
		if m := host.Manifest(alias); m != nil {
			out[alias] = m.Version
		}
	}
	return out
}

// LintFile lints one file through the full pipeline, consulting and updating
// the cache. The host carries this worker's loaded rules.
func (l *Linter) LintFile(ctx context.Context, host *plugin.PluginHost, path string) (*FileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s exceeds the %d byte limit", path, MaxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var timings *Timings
	if l.cfg.Timings {
		timings = newTimings()
	}

	contentHash := cache.HashBytes(content)
	versions := ruleVersions(host)

	cacheStart := time.Now()
	if diags, hit := l.store.Lookup(path, contentHash, l.configHash, versions); hit {
		timings.addPhase(PhaseCache, time.Since(cacheStart))
		logging.Default().Debug("file-level cache hit", logging.FieldPath, path)
		return &FileResult{
			Path:        path,
			Diagnostics: diags,
			FromCache:   true,
			Timings:     timings,
		}, nil
	}
	timings.addPhase(PhaseCache, time.Since(cacheStart))

	result, entry, err := l.lintContent(ctx, host, path, content, versions, timings, true)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		entry.ContentHash = contentHash
		l.store.Set(path, entry)
	}
	return result, nil
}

// LintText lints in-memory content, bypassing the cache entirely. This is
// the entry point editor integrations use.
func (l *Linter) LintText(ctx context.Context, host *plugin.PluginHost, path string, content []byte) (*FileResult, error) {
	var timings *Timings
	if l.cfg.Timings {
		timings = newTimings()
	}
	result, _, err := l.lintContent(ctx, host, path, content, ruleVersions(host), timings, false)
	return result, err
}

// lintContent runs the parse-analyze-dispatch pipeline over content. When
// useCache is set, block-level reconciliation feeds reused diagnostics and a
// fresh cache entry (minus its content hash) is returned for the caller to
// commit.
func (l *Linter) lintContent(
	ctx context.Context,
	host *plugin.PluginHost,
	path string,
	content []byte,
	versions map[string]string,
	timings *Timings,
	useCache bool,
) (*FileResult, *cache.Entry, error) {
	source := string(content)

	parseStart := time.Now()
	arena := ast.NewArena()
	p := l.registry.Select(filepath.Ext(path))
	doc, err := p.Parse(arena, content)
	timings.addPhase(PhaseParse, time.Since(parseStart))
	if err != nil {
		return nil, nil, err
	}

	chars := Scan(doc)

	// Partition applicable rules by isolation level.
	var globalRules, blockRules []string
	needTokens, needSentences := false, false
	for _, alias := range host.Aliases() {
		m := host.Manifest(alias)
		if m == nil || !chars.RuleApplies(m) {
			continue
		}
		if m.IsolationLevel == plugin.IsolationBlock {
			blockRules = append(blockRules, alias)
		} else {
			globalRules = append(globalRules, alias)
		}
		needTokens = needTokens || m.NeedsMorphology()
		needSentences = needSentences || m.NeedsSentences()
	}

	// Tokenize and sentence-split once per file, and only when some
	// applicable rule consumes the result.
	analysisStart := time.Now()
	var tokens []text.Token
	var sentences []text.Sentence
	if needTokens && l.tokenizer != nil {
		tokens = l.tokenizer.Tokenize(source)
	}
	if needSentences {
		sentences = text.Split(source, ignoreRanges(doc))
	}
	timings.addPhase(PhaseAnalysis, time.Since(analysisStart))

	blocks, blockNodes := extractBlocks(doc, source)

	// Block-level reconciliation reuses prior results for unmoved content.
	var reused []plugin.Diagnostic
	matched := make([]bool, len(blocks))
	if useCache {
		cacheStart := time.Now()
		reused, matched = l.store.Reconcile(path, blocks, l.configHash, versions)
		timings.addPhase(PhaseCache, time.Since(cacheStart))
	}

	rulesStart := time.Now()
	var fresh []plugin.Diagnostic
	var ruleErrors []*plugin.RuleError

	// Global rules see the whole document and rerun on every cache miss.
	if len(globalRules) > 0 {
		payload := plugin.NewRequestPayload([]*ast.Node{doc}, source, path)
		payload.Tokens = tokens
		payload.Sentences = sentences
		for _, alias := range globalRules {
			start := time.Now()
			diags, err := host.RunRule(ctx, alias, payload, nil)
			timings.addRule(alias, time.Since(start))
			fresh = append(fresh, diags...)
			if err != nil {
				ruleErrors = append(ruleErrors, plugin.AsRuleError(err, alias))
			}
		}
	}

	// Block rules run only over dirty blocks.
	if len(blockRules) > 0 {
		for i, node := range blockNodes {
			if matched[i] {
				continue
			}
			payload := plugin.NewRequestPayload([]*ast.Node{node}, source, path)
			payload.Tokens = tokens
			payload.Sentences = sentences
			span := blocks[i].Span
			for _, alias := range blockRules {
				start := time.Now()
				diags, err := host.RunRule(ctx, alias, payload, &span)
				timings.addRule(alias, time.Since(start))
				fresh = append(fresh, diags...)
				if err != nil {
					ruleErrors = append(ruleErrors, plugin.AsRuleError(err, alias))
				}
			}
		}
	}
	timings.addPhase(PhaseRules, time.Since(rulesStart))

	assembleStart := time.Now()
	l.applySeverities(fresh)

	all := make([]plugin.Diagnostic, 0, len(reused)+len(fresh))
	all = append(all, reused...)
	all = append(all, fresh...)
	slices.SortFunc(all, plugin.CompareDiagnostics)
	all = dedupe(all)

	var entry *cache.Entry
	if useCache {
		globalSet := make(map[string]bool, len(globalRules))
		for _, alias := range globalRules {
			globalSet[alias] = true
		}
		newBlocks := cache.Distribute(blocks, all, globalSet)
		entry = cache.NewEntry(cache.Hash{}, l.configHash, versions, all, newBlocks)
	}
	timings.addPhase(PhaseAssemble, time.Since(assembleStart))

	return &FileResult{
		Path:        path,
		Diagnostics: all,
		RuleErrors:  ruleErrors,
		Timings:     timings,
	}, entry, nil
}

// applySeverities overrides diagnostic severities with the configured
// per-rule severity, when one is set.
func (l *Linter) applySeverities(diags []plugin.Diagnostic) {
	for i := range diags {
		if b := l.cfg.Binding(diags[i].RuleID); b != nil && b.Severity != "" {
			diags[i].Severity = b.Severity
		}
	}
}

// dedupe removes adjacent duplicates from a sorted diagnostic list. A
// diagnostic reproduced by both the reused and fresh paths collapses to one.
func dedupe(diags []plugin.Diagnostic) []plugin.Diagnostic {
	if len(diags) < 2 {
		return diags
	}
	out := diags[:1]
	for i := 1; i < len(diags); i++ {
		prev := out[len(out)-1]
		if diags[i].Key() == prev.Key() {
			continue
		}
		out = append(out, diags[i])
	}
	return out
}
