// Package runner provides multi-file lint orchestration: discovery, the
// worker pool, plugin host pooling, fix application, and aggregation.
package runner

import "github.com/yaklabco/kotoba/pkg/config"

// Options controls one run.
type Options struct {
	// Patterns are the user-specified files, directories, or glob patterns.
	// Empty defaults to the current working directory. Aggregated output
	// follows pattern order.
	Patterns []string

	// WorkingDir is the base directory for relative patterns and cache keys.
	// Empty uses the process working directory.
	WorkingDir string

	// Extensions is the set of file extensions (lowercase, with leading dot)
	// considered lintable during directory walks.
	Extensions []string

	// FollowSymlinks controls whether directory symlinks are traversed.
	FollowSymlinks bool

	// Fix applies machine fixes after linting.
	Fix bool

	// DryRun plans fixes and produces diffs without writing files.
	DryRun bool

	// MaxFixPasses bounds the fix/re-lint loop; 0 uses the default.
	MaxFixPasses int

	// Backup writes a sidecar backup before committing fixes.
	Backup bool

	// Config is the resolved driver configuration.
	Config *config.Config
}

// DefaultExtensions returns the extensions linted by default.
func DefaultExtensions() []string {
	return []string{".md", ".markdown", ".mdown", ".mkd", ".txt", ".text"}
}

func (o Options) effectiveExtensions() []string {
	if len(o.Extensions) == 0 {
		return DefaultExtensions()
	}
	return o.Extensions
}

func (o Options) effectivePatterns() []string {
	if len(o.Patterns) == 0 {
		return []string{"."}
	}
	return o.Patterns
}

// includeGlobs returns the configuration's include patterns.
func (o Options) includeGlobs() []string {
	return o.effectiveConfig().Include
}

// excludeGlobs returns the configuration's exclude patterns.
func (o Options) excludeGlobs() []string {
	return o.effectiveConfig().Exclude
}

func (o Options) effectiveConfig() *config.Config {
	if o.Config == nil {
		return config.Default()
	}
	return o.Config
}
