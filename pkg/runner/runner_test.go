package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/kotoba/pkg/cache"
	"github.com/yaklabco/kotoba/pkg/config"
	"github.com/yaklabco/kotoba/pkg/lint"
	"github.com/yaklabco/kotoba/pkg/plugin"
	"github.com/yaklabco/kotoba/pkg/plugin/plugintest"
)

// testRig wires a runner whose hosts run scripted rules.
type testRig struct {
	runner *Runner
	store  *cache.Store
	cfg    *config.Config
	dir    string
	// modules creates the scripted rule set for each new host; keyed by
	// alias.
	modules func() map[string]*plugintest.Module
}

func newRig(t *testing.T, modules func() map[string]*plugintest.Module) *testRig {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Cache.Directory = filepath.Join(dir, ".cache")

	store := cache.NewStore(cfg.Cache.Directory)
	linter := lint.New(cfg, store, nil)

	factory := func(ctx context.Context) (*plugin.PluginHost, error) {
		exec := plugintest.NewExecutor()
		host := plugin.NewHostWithExecutor(exec, plugin.Limits{})
		for alias, mod := range modules() {
			exec.Register(alias, mod)
			if _, err := host.LoadRule(ctx, alias, plugintest.WasmKey(alias)); err != nil {
				return nil, err
			}
		}
		return host, nil
	}
	pool := NewHostPool(factory)
	t.Cleanup(pool.Close)

	return &testRig{
		runner:  New(linter, store, pool),
		store:   store,
		cfg:     cfg,
		dir:     dir,
		modules: func() map[string]*plugintest.Module { return modules() },
	}
}

func (r *testRig) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(r.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (r *testRig) opts(patterns ...string) Options {
	return Options{
		Patterns:   patterns,
		WorkingDir: r.dir,
		Config:     r.cfg,
	}
}

func todoModules() map[string]*plugintest.Module {
	return map[string]*plugintest.Module{
		"no-todo": plugintest.SubstringRule("no-todo", "TODO", plugin.IsolationBlock, nil),
	}
}

func TestRunLintsDiscoveredFiles(t *testing.T) {
	rig := newRig(t, todoModules)
	rig.write(t, "a.md", "TODO one\n")
	rig.write(t, "b.md", "clean\n")
	rig.write(t, "notes.txt", "TODO two\n")
	rig.write(t, "skip.rst", "TODO ignored\n")

	res, err := rig.runner.Run(context.Background(), rig.opts("."))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.FilesDiscovered)
	assert.Equal(t, 3, res.Stats.FilesProcessed)
	assert.Equal(t, 2, res.Stats.DiagnosticsTotal)
	assert.Equal(t, 2, res.Stats.FilesWithIssues)
	assert.Empty(t, res.Failures)
	assert.False(t, res.HasErrors())
	assert.True(t, res.HasIssues())
}

func TestRunResultsFollowDiscoveryOrder(t *testing.T) {
	rig := newRig(t, todoModules)
	rig.write(t, "c.md", "TODO\n")
	rig.write(t, "a.md", "TODO\n")
	rig.write(t, "b.md", "TODO\n")

	res, err := rig.runner.Run(context.Background(), rig.opts("."))
	require.NoError(t, err)

	require.Len(t, res.Files, 3)
	assert.Equal(t, "a.md", filepath.Base(res.Files[0].Path))
	assert.Equal(t, "b.md", filepath.Base(res.Files[1].Path))
	assert.Equal(t, "c.md", filepath.Base(res.Files[2].Path))
}

func TestRunPatternOrderPreserved(t *testing.T) {
	rig := newRig(t, todoModules)
	rig.write(t, "z.md", "TODO\n")
	rig.write(t, "a.md", "TODO\n")

	res, err := rig.runner.Run(context.Background(), rig.opts("z.md", "a.md"))
	require.NoError(t, err)

	require.Len(t, res.Files, 2)
	assert.Equal(t, "z.md", filepath.Base(res.Files[0].Path))
	assert.Equal(t, "a.md", filepath.Base(res.Files[1].Path))
}

func TestRunSecondRunHitsCache(t *testing.T) {
	rig := newRig(t, todoModules)
	rig.write(t, "a.md", "TODO cached\n")

	ctx := context.Background()
	first, err := rig.runner.Run(ctx, rig.opts("a.md"))
	require.NoError(t, err)
	assert.Equal(t, 0, first.Stats.FilesFromCache)

	second, err := rig.runner.Run(ctx, rig.opts("a.md"))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Stats.FilesFromCache)

	require.Len(t, second.Files, 1)
	require.Len(t, first.Files, 1)
	assert.Equal(t, first.Files[0].Result.Diagnostics, second.Files[0].Result.Diagnostics)
}

func TestRunWarmEqualsCold(t *testing.T) {
	rig := newRig(t, todoModules)
	rig.write(t, "a.md", "# H\n\nTODO x\n\nTODO y\n")

	ctx := context.Background()
	cold, err := rig.runner.Run(ctx, rig.opts("a.md"))
	require.NoError(t, err)

	warm, err := rig.runner.Run(ctx, rig.opts("a.md"))
	require.NoError(t, err)

	assert.Equal(t,
		cold.Files[0].Result.Diagnostics,
		warm.Files[0].Result.Diagnostics)
}

func TestRunFixApplies(t *testing.T) {
	replacement := "DONE"
	rig := newRig(t, func() map[string]*plugintest.Module {
		return map[string]*plugintest.Module{
			"todo-fixer": plugintest.SubstringRule("todo-fixer", "TODO", plugin.IsolationGlobal, &replacement),
		}
	})
	path := rig.write(t, "a.md", "TODO first\n")

	opts := rig.opts("a.md")
	opts.Fix = true
	res, err := rig.runner.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stats.FilesModified)
	assert.Equal(t, 1, res.Stats.FixesApplied)

	fixed, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "DONE first\n", string(fixed))
}

func TestRunDryRunLeavesFileUntouched(t *testing.T) {
	replacement := ""
	rig := newRig(t, func() map[string]*plugintest.Module {
		return map[string]*plugintest.Module{
			"deleter": plugintest.SubstringRule("deleter", "TODO", plugin.IsolationGlobal, &replacement),
		}
	})
	path := rig.write(t, "a.md", "TODO gone\n")

	opts := rig.opts("a.md")
	opts.DryRun = true
	res, err := rig.runner.Run(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, res.Files, 1)
	require.NotNil(t, res.Files[0].Fixes)
	assert.NotNil(t, res.Files[0].Fixes.Diff)
	assert.False(t, res.Files[0].Fixes.Written)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "TODO gone\n", string(content))
}

func TestRunContainsRuleFailures(t *testing.T) {
	rig := newRig(t, func() map[string]*plugintest.Module {
		return map[string]*plugintest.Module{
			"no-todo":      plugintest.SubstringRule("no-todo", "TODO", plugin.IsolationGlobal, nil),
			"loop_forever": plugintest.FailingRule("loop_forever", plugin.ErrTimeout),
		}
	})
	rig.write(t, "a.md", "TODO: x\n")

	res, err := rig.runner.Run(context.Background(), rig.opts("a.md"))
	require.NoError(t, err)

	require.Len(t, res.Files, 1)
	result := res.Files[0].Result
	require.NotNil(t, result)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "no-todo", result.Diagnostics[0].RuleID)
	assert.Equal(t, 1, res.Stats.RuleErrors)
	assert.Empty(t, res.Failures)
}

func TestRunNoFiles(t *testing.T) {
	rig := newRig(t, todoModules)

	res, err := rig.runner.Run(context.Background(), rig.opts("."))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stats.FilesDiscovered)
	assert.Empty(t, res.Files)
}

func TestRunUnmatchedGlobIsError(t *testing.T) {
	rig := newRig(t, todoModules)
	_, err := rig.runner.Run(context.Background(), rig.opts("nothing-*.md"))
	assert.Error(t, err)
}

func TestHostPoolLIFO(t *testing.T) {
	built := 0
	pool := NewHostPool(func(ctx context.Context) (*plugin.PluginHost, error) {
		built++
		return plugin.NewHostWithExecutor(plugintest.NewExecutor(), plugin.Limits{}), nil
	})
	defer pool.Close()

	ctx := context.Background()
	h1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	h2, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, built)

	pool.Release(h1)
	pool.Release(h2)
	assert.Equal(t, 2, pool.Available())

	// Most recently released comes back first.
	got, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, h2, got)
	assert.Equal(t, 1, pool.Available())
	assert.Equal(t, 2, built, "reuse must not construct a new host")
}

func TestDiscoverExcludesAndIncludes(t *testing.T) {
	rig := newRig(t, todoModules)
	rig.write(t, "docs/keep.md", "x\n")
	rig.write(t, "vendor/skip.md", "x\n")
	rig.cfg.Exclude = []string{"vendor/**"}

	files, err := Discover(context.Background(), rig.opts("."))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "keep.md", filepath.Base(files[0]))

	rig.cfg.Exclude = nil
	rig.cfg.Include = []string{"docs/**"}
	files, err = Discover(context.Background(), rig.opts("."))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "keep.md", filepath.Base(files[0]))
}

func TestDiscoverHiddenSkipped(t *testing.T) {
	rig := newRig(t, todoModules)
	rig.write(t, ".hidden/a.md", "x\n")
	rig.write(t, ".secret.md", "x\n")
	rig.write(t, "visible.md", "x\n")

	files, err := Discover(context.Background(), rig.opts("."))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "visible.md", filepath.Base(files[0]))
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"vendor/**", "vendor/a.md", true},
		{"vendor/**", "vendor/deep/b.md", true},
		{"vendor/**", "vendor", true},
		{"vendor/**", "docs/a.md", false},
		{"**/generated", "a/b/generated", true},
		{"**/generated", "generated", true},
		{"docs/**/api.md", "docs/v1/ref/api.md", true},
		{"docs/**/api.md", "docs/api.md", true},
		{"*.md", "notes.md", true},
		{"*.md", "docs/notes.md", true}, // basename fallback
		{"*.md", "notes.txt", false},
		{"docs/*.md", "docs/a.md", true},
		{"docs/*.md", "docs/sub/a.md", false},
		{"b?.md", "docs/ba.md", true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, globMatch(tc.pattern, tc.path),
			"globMatch(%q, %q)", tc.pattern, tc.path)
	}
}

func TestDiscoverGlobPattern(t *testing.T) {
	rig := newRig(t, todoModules)
	rig.write(t, "a.md", "x\n")
	rig.write(t, "b.md", "x\n")
	rig.write(t, "c.txt", "x\n")

	files, err := Discover(context.Background(), rig.opts("*.md"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
