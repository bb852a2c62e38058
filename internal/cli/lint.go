package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yaklabco/kotoba/internal/configloader"
	"github.com/yaklabco/kotoba/internal/logging"
	"github.com/yaklabco/kotoba/pkg/cache"
	"github.com/yaklabco/kotoba/pkg/lint"
	"github.com/yaklabco/kotoba/pkg/reporter"
	"github.com/yaklabco/kotoba/pkg/runner"
	"github.com/yaklabco/kotoba/pkg/text"
)

func newLintCommand(configPath, color *string) *cobra.Command {
	var (
		fixFlag  bool
		dryRun   bool
		backup   bool
		format   string
		jobs     int
		noCache  bool
		timings  bool
		patterns []string
	)

	cmd := &cobra.Command{
		Use:   "lint [patterns...]",
		Short: "Lint documents with the configured rules",
		Long: `Lint the files matching the given patterns (files, directories, or
globs). With no pattern the current directory is linted.

Exit status is 0 when no error-severity diagnostics were found, 1 when some
were, and 2 when the run itself failed (bad configuration or patterns).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns = args

			cfg, err := configloader.Load(*configPath, "")
			if err != nil {
				return &exitError{code: ExitUsageError, err: err}
			}
			if jobs > 0 {
				cfg.Jobs = jobs
			}
			if timings {
				cfg.Timings = true
			}
			if noCache {
				cfg.Cache.Enabled = false
			}

			outFormat, err := reporter.ParseFormat(format)
			if err != nil {
				return &exitError{code: ExitUsageError, err: err}
			}

			store := cache.NewStore(cfg.Cache.Directory)
			if !cfg.Cache.Enabled {
				store.Disable()
			}

			// The dictionary load is not free; skip it when no rules are
			// configured at all.
			var tokenizer *text.Tokenizer
			if len(cfg.Rules) > 0 {
				tokenizer, err = text.NewTokenizer()
				if err != nil {
					return &exitError{code: ExitUsageError, err: err}
				}
			}

			linter := lint.New(cfg, store, tokenizer)
			pool := runner.NewHostPool(runner.DefaultHostFactory(cfg))
			defer pool.Close()

			run := runner.New(linter, store, pool)
			result, err := run.Run(cmd.Context(), runner.Options{
				Patterns: patterns,
				Fix:      fixFlag,
				DryRun:   dryRun,
				Backup:   backup,
				Config:   cfg,
			})
			if err != nil {
				return &exitError{code: ExitUsageError, err: err}
			}

			rep, err := reporter.New(os.Stdout, reporter.Options{
				Format:      outFormat,
				Color:       *color,
				ShowTimings: cfg.Timings,
			})
			if err != nil {
				return &exitError{code: ExitUsageError, err: err}
			}
			if err := rep.Report(result); err != nil {
				return &exitError{code: ExitUsageError, err: err}
			}

			if result.HasErrors() {
				return &exitError{code: ExitLintErrors}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fixFlag, "fix", false, "apply machine fixes")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan fixes and show diffs without writing")
	cmd.Flags().BoolVar(&backup, "backup", false, "write sidecar backups before fixing")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, sarif")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "number of parallel workers (0 = one per core)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the incremental cache")
	cmd.Flags().BoolVar(&timings, "timings", false, "collect and print per-rule timings")

	return cmd
}

// exitError carries an exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

// Execute runs the root command and maps errors to exit codes.
func Execute(info BuildInfo) int {
	root := NewRootCommand(info)
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				logging.Default().Error(ee.err.Error())
			}
			return ee.code
		}
		logging.Default().Error(err.Error())
		return ExitUsageError
	}
	return ExitSuccess
}
