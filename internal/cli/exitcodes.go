package cli

// Exit codes for kotoba.
const (
	// ExitSuccess indicates the aggregate contained no error-severity
	// diagnostics.
	ExitSuccess = 0

	// ExitLintErrors indicates lint completed and found error-severity
	// diagnostics.
	ExitLintErrors = 1

	// ExitUsageError indicates the run itself failed: invalid patterns,
	// configuration, or rule resolution.
	ExitUsageError = 2
)
