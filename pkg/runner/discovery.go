package runner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover expands the option patterns into lintable files. Each pattern may
// name a file, a directory to walk, or a glob. The result is deterministic:
// files follow pattern order, sorted within each pattern, first occurrence
// winning on duplicates.
func Discover(ctx context.Context, opts Options) ([]string, error) {
	workDir, err := resolveWorkDir(opts.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	w := newWalker(opts, workDir)

	seen := make(map[string]struct{})
	var files []string
	add := func(batch []string) {
		sort.Strings(batch)
		for _, f := range batch {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				files = append(files, f)
			}
		}
	}

	for _, pattern := range opts.effectivePatterns() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("discovery cancelled: %w", ctx.Err())
		default:
		}

		roots, err := expandPattern(pattern, workDir)
		if err != nil {
			return nil, err
		}

		var batch []string
		for _, absPath := range roots {
			info, err := os.Stat(absPath)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", pattern, err)
			}
			if info.IsDir() {
				discovered, err := w.walk(ctx, absPath)
				if err != nil {
					return nil, err
				}
				batch = append(batch, discovered...)
			} else if w.wants(absPath) {
				batch = append(batch, absPath)
			}
		}
		add(batch)
	}

	return files, nil
}

// expandPattern resolves one input pattern to absolute paths. Patterns
// without glob metacharacters pass through; an unmatched glob is a
// configuration error.
func expandPattern(pattern, workDir string) ([]string, error) {
	abs := pattern
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workDir, abs)
	}
	abs = filepath.Clean(abs)

	if !strings.ContainsAny(pattern, "*?[") {
		return []string{abs}, nil
	}

	matches, err := filepath.Glob(abs)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pattern %q matched nothing", pattern)
	}
	return matches, nil
}

// resolveWorkDir resolves the working directory, defaulting to os.Getwd().
func resolveWorkDir(workDir string) (string, error) {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		return wd, nil
	}
	absPath, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return absPath, nil
}

// walker holds the precompiled file-selection state for one discovery run:
// the extension set and the configured include/exclude globs, all matched
// against paths relative to the working directory.
type walker struct {
	workDir        string
	exts           map[string]bool
	include        []string
	exclude        []string
	followSymlinks bool
}

func newWalker(opts Options, workDir string) *walker {
	exts := make(map[string]bool)
	for _, ext := range opts.effectiveExtensions() {
		exts[strings.ToLower(ext)] = true
	}
	return &walker{
		workDir:        workDir,
		exts:           exts,
		include:        opts.includeGlobs(),
		exclude:        opts.excludeGlobs(),
		followSymlinks: opts.FollowSymlinks,
	}
}

// walk collects the lintable files under root. Hidden entries are skipped,
// excluded directories are pruned without descending, and symlinked
// directories are followed only when the options ask for it.
func (w *walker) walk(ctx context.Context, root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			// Unreadable subtrees are skipped, not fatal.
			if os.IsPermission(walkErr) {
				return nil
			}
			return walkErr
		}

		hidden := path != root && strings.HasPrefix(entry.Name(), ".")

		if entry.IsDir() {
			if hidden || w.excluded(w.rel(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden {
			return nil
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			target, ok := w.resolveSymlink(path)
			if !ok {
				return nil
			}
			if target != "" {
				// Walk the resolved target rather than the link so the walk
				// root is a real directory.
				sub, err := w.walk(ctx, target)
				if err != nil {
					return err
				}
				files = append(files, sub...)
				return nil
			}
			// A file symlink falls through to the normal checks.
		}

		if w.wants(path) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", root, err)
	}
	return files, nil
}

// resolveSymlink classifies a symlink: ("", true) for a file link to check
// normally, (dir, true) for a directory to descend into, (_, false) to skip.
func (w *walker) resolveSymlink(path string) (string, bool) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		// Broken link.
		return "", false
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", false
	}
	if !info.IsDir() {
		return "", true
	}
	if !w.followSymlinks {
		return "", false
	}
	return target, true
}

// wants reports whether a file passes the extension, exclude, and include
// filters.
func (w *walker) wants(path string) bool {
	if !w.exts[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	rel := w.rel(path)
	if w.excluded(rel) {
		return false
	}
	if len(w.include) > 0 && !w.included(rel) {
		return false
	}
	return true
}

// rel maps an absolute path to its workspace-relative, slash-separated form
// used for glob matching.
func (w *walker) rel(path string) string {
	rel, err := filepath.Rel(w.workDir, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

func (w *walker) excluded(rel string) bool {
	for _, pattern := range w.exclude {
		if globMatch(pattern, rel) {
			return true
		}
	}
	return false
}

func (w *walker) included(rel string) bool {
	for _, pattern := range w.include {
		if globMatch(pattern, rel) {
			return true
		}
	}
	return false
}

// globMatch matches a slash-separated relative path against a glob pattern.
// `*` and `?` match within one path segment; `**` spans any number of
// segments, including none. A pattern without a separator also matches on
// the basename alone, so "*.bak" excludes such files anywhere in the tree.
func globMatch(pattern, path string) bool {
	pattern = filepath.ToSlash(pattern)
	if !strings.Contains(pattern, "/") && matchSegments([]string{pattern}, []string{filepath.Base(path)}) {
		return true
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(path, "/"))
}

// matchSegments matches pattern segments against path segments, recursing on
// `**` so it can consume zero or more of them.
func matchSegments(pattern, path []string) bool {
	for len(pattern) > 0 {
		seg := pattern[0]
		if seg == "**" {
			rest := pattern[1:]
			for skip := 0; skip <= len(path); skip++ {
				if matchSegments(rest, path[skip:]) {
					return true
				}
			}
			return false
		}
		if len(path) == 0 {
			return false
		}
		ok, err := filepath.Match(seg, path[0])
		if err != nil || !ok {
			return false
		}
		pattern = pattern[1:]
		path = path[1:]
	}
	return len(path) == 0
}
