// Package logging provides a structured logging wrapper around charmbracelet/log.
package logging

// Field name constants for structured logging.
// Using constants prevents typos and enables IDE autocomplete.
const (
	// Common fields.
	FieldError      = "error"
	FieldPath       = "path"
	FieldPaths      = "paths"
	FieldFiles      = "files"
	FieldPattern    = "pattern"
	FieldWorkingDir = "working_dir"

	// Configuration fields.
	FieldConfig   = "config"
	FieldCacheDir = "cache_dir"
	FieldFix      = "fix"
	FieldDryRun   = "dry_run"
	FieldJobs     = "jobs"

	// Rule and plugin fields.
	FieldRule      = "rule"
	FieldRules     = "rules"
	FieldVersion   = "version"
	FieldWasmPath  = "wasm_path"
	FieldIsolation = "isolation"
	FieldSeverity  = "severity"
	FieldFixable   = "fixable"

	// Cache fields.
	FieldEntries   = "entries"
	FieldFromCache = "from_cache"
	FieldBlocks    = "blocks"

	// Statistics fields.
	FieldFilesDiscovered  = "files_discovered"
	FieldFilesProcessed   = "files_processed"
	FieldFilesFailed      = "files_failed"
	FieldDiagnosticsTotal = "diagnostics_total"
	FieldFixesApplied     = "fixes_applied"
	FieldDuration         = "duration"

	// Version fields.
	FieldCommit = "commit"
	FieldBuilt  = "built"
)
