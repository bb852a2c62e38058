package cache

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/kotoba/pkg/ast"
	"github.com/yaklabco/kotoba/pkg/plugin"
)

func diag(rule string, start, end uint32) plugin.Diagnostic {
	return plugin.Diagnostic{
		RuleID:   rule,
		Message:  "msg " + rule,
		Span:     ast.NewSpan(start, end),
		Severity: plugin.SeverityWarning,
	}
}

func versions(pairs ...string) map[string]string {
	out := make(map[string]string)
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = pairs[i+1]
	}
	return out
}

func TestEntryValidity(t *testing.T) {
	content := HashString("content")
	config := HashString("config")
	rv := versions("no-todo", "1.0.0")

	entry := NewEntry(content, config, rv, nil, nil)

	assert.True(t, entry.Valid(content, config, rv))
	assert.False(t, entry.Valid(HashString("other"), config, rv))
	assert.False(t, entry.Valid(content, HashString("other"), rv))
	assert.False(t, entry.Valid(content, config, versions("no-todo", "2.0.0")))
	assert.False(t, entry.Valid(content, config, versions("no-todo", "1.0.0", "extra", "1.0.0")))
	assert.False(t, entry.Valid(content, config, versions()))
}

func TestStoreLookup(t *testing.T) {
	s := NewStore(t.TempDir())
	content := HashString("src")
	config := HashString("cfg")
	rv := versions("r", "1")

	_, hit := s.Lookup("a.md", content, config, rv)
	assert.False(t, hit)

	s.Set("a.md", NewEntry(content, config, rv, []plugin.Diagnostic{diag("r", 0, 4)}, nil))

	got, hit := s.Lookup("a.md", content, config, rv)
	require.True(t, hit)
	require.Len(t, got, 1)
	assert.Equal(t, "r", got[0].RuleID)

	// Any fingerprint change misses.
	_, hit = s.Lookup("a.md", HashString("changed"), config, rv)
	assert.False(t, hit)
}

func TestStoreDisabled(t *testing.T) {
	s := NewStore(t.TempDir())
	s.Disable()

	s.Set("a.md", NewEntry(Hash{}, Hash{}, nil, nil, nil))
	assert.Nil(t, s.Get("a.md"))
	_, hit := s.Lookup("a.md", Hash{}, Hash{}, nil)
	assert.False(t, hit)
}

func TestReconcileShiftsSpans(t *testing.T) {
	s := NewStore(t.TempDir())
	config := HashString("cfg")
	rv := versions("r", "1")

	// Cached: one block at [16, 30) carrying a diagnostic at [16, 20) with a
	// fix.
	d := diag("r", 16, 20)
	d.Fix = &plugin.Fix{Span: ast.NewSpan(16, 20), Text: ""}
	cachedBlocks := []BlockEntry{{
		Hash:        HashString("ParaTODO two."),
		Span:        ast.NewSpan(16, 30),
		Diagnostics: []plugin.Diagnostic{d},
	}}
	s.Set("a.md", NewEntry(HashString("old"), config, rv, nil, cachedBlocks))

	// The same block moved 8 bytes right.
	current := []BlockEntry{{
		Hash: HashString("ParaTODO two."),
		Span: ast.NewSpan(24, 38),
	}}

	reused, matched := s.Reconcile("a.md", current, config, rv)
	require.Equal(t, []bool{true}, matched)
	require.Len(t, reused, 1)
	assert.Equal(t, ast.NewSpan(24, 28), reused[0].Span)
	require.NotNil(t, reused[0].Fix)
	assert.Equal(t, ast.NewSpan(24, 28), reused[0].Fix.Span)
	assert.Nil(t, reused[0].Loc)
}

func TestReconcileUnmatchedBlocksAreDirty(t *testing.T) {
	s := NewStore(t.TempDir())
	config := HashString("cfg")
	rv := versions("r", "1")

	s.Set("a.md", NewEntry(HashString("old"), config, rv, nil, []BlockEntry{
		{Hash: HashString("unchanged"), Span: ast.NewSpan(0, 9)},
	}))

	current := []BlockEntry{
		{Hash: HashString("unchanged"), Span: ast.NewSpan(0, 9)},
		{Hash: HashString("brand new"), Span: ast.NewSpan(11, 20)},
	}
	_, matched := s.Reconcile("a.md", current, config, rv)
	assert.Equal(t, []bool{true, false}, matched)
}

func TestReconcileConfigChangeReusesNothing(t *testing.T) {
	s := NewStore(t.TempDir())
	rv := versions("r", "1")

	s.Set("a.md", NewEntry(HashString("old"), HashString("cfg1"), rv, nil, []BlockEntry{
		{Hash: HashString("b"), Span: ast.NewSpan(0, 5)},
	}))

	current := []BlockEntry{{Hash: HashString("b"), Span: ast.NewSpan(0, 5)}}
	reused, matched := s.Reconcile("a.md", current, HashString("cfg2"), rv)
	assert.Empty(t, reused)
	assert.Equal(t, []bool{false}, matched)
}

func TestReconcileDuplicateBlocksPickNearest(t *testing.T) {
	s := NewStore(t.TempDir())
	config := HashString("cfg")
	rv := versions("r", "1")

	same := HashString("dup")
	s.Set("a.md", NewEntry(HashString("old"), config, rv, nil, []BlockEntry{
		{Hash: same, Span: ast.NewSpan(0, 10), Diagnostics: []plugin.Diagnostic{diag("r", 2, 4)}},
		{Hash: same, Span: ast.NewSpan(100, 110), Diagnostics: []plugin.Diagnostic{diag("r", 102, 104)}},
	}))

	current := []BlockEntry{{Hash: same, Span: ast.NewSpan(104, 114)}}
	reused, matched := s.Reconcile("a.md", current, config, rv)
	require.Equal(t, []bool{true}, matched)
	require.Len(t, reused, 1)
	// Matched against the cached block at 100; shift = +4.
	assert.Equal(t, ast.NewSpan(106, 108), reused[0].Span)
}

func TestDistribute(t *testing.T) {
	blocks := []BlockEntry{
		{Hash: HashString("b1"), Span: ast.NewSpan(10, 20)},
		{Hash: HashString("b2"), Span: ast.NewSpan(30, 40)},
	}
	diags := []plugin.Diagnostic{
		diag("global-rule", 0, 5),
		diag("r", 12, 15),
		diag("r", 15, 25), // straddles the block end: not cacheable per block
		diag("r", 32, 35),
	}
	out := Distribute(blocks, diags, map[string]bool{"global-rule": true})

	require.Len(t, out, 2)
	require.Len(t, out[0].Diagnostics, 1)
	assert.Equal(t, ast.NewSpan(12, 15), out[0].Diagnostics[0].Span)
	require.Len(t, out[1].Diagnostics, 1)
	assert.Equal(t, ast.NewSpan(32, 35), out[1].Diagnostics[0].Span)
}

func TestArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	content := HashString("src")
	config := HashString("cfg")
	rv := versions("r", "1")

	s.Set("docs/a.md", NewEntry(content, config, rv,
		[]plugin.Diagnostic{diag("r", 3, 9)},
		[]BlockEntry{{Hash: HashString("blk"), Span: ast.NewSpan(0, 12)}}))
	s.Set("docs/b.md", NewEntry(content, config, rv, nil, nil))
	require.NoError(t, s.Save())

	loaded := NewStore(dir)
	require.NoError(t, loaded.Load())
	assert.Equal(t, 2, loaded.Len())

	got, hit := loaded.Lookup("docs/a.md", content, config, rv)
	require.True(t, hit)
	require.Len(t, got, 1)
	assert.Equal(t, ast.NewSpan(3, 9), got[0].Span)
	assert.Equal(t, plugin.SeverityWarning, got[0].Severity)

	e := loaded.Get("docs/b.md")
	require.NotNil(t, e)
	assert.True(t, e.Valid(content, config, rv))
}

func TestArchiveVersionMismatchDiscards(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	s.Set("a.md", NewEntry(HashString("x"), HashString("y"), nil, nil, nil))
	require.NoError(t, s.Save())

	// Corrupt the version field.
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	data[4] = 0xFF
	require.NoError(t, os.WriteFile(s.Path(), data, 0o644))

	loaded := NewStore(dir)
	err = loaded.Load()
	require.Error(t, err)
	assert.Equal(t, 0, loaded.Len())
	// The bad archive is gone; the next save starts fresh.
	assert.NoFileExists(t, s.Path())
}

func TestArchiveMissingFileIsFine(t *testing.T) {
	s := NewStore(t.TempDir())
	assert.NoError(t, s.Load())
	assert.Equal(t, 0, s.Len())
}
