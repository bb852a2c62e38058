package runner

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/yaklabco/kotoba/internal/logging"
	"github.com/yaklabco/kotoba/pkg/cache"
	"github.com/yaklabco/kotoba/pkg/fix"
	"github.com/yaklabco/kotoba/pkg/fsutil"
	"github.com/yaklabco/kotoba/pkg/lint"
	"github.com/yaklabco/kotoba/pkg/plugin"
)

// Runner orchestrates a whole run: discovery, parallel per-file linting with
// pooled plugin hosts, optional fix application, and cache persistence.
type Runner struct {
	linter *lint.Linter
	store  *cache.Store
	pool   *HostPool
}

// New creates a runner over a linter, its cache store, and a host pool.
func New(linter *lint.Linter, store *cache.Store, pool *HostPool) *Runner {
	return &Runner{linter: linter, store: store, pool: pool}
}

// Run expands the patterns, lints every discovered file, and returns the
// aggregate. File-level problems are contained in the result; the returned
// error is reserved for run-level failures (bad patterns, host construction).
//
// Files are the unit of parallelism. Each worker owns one PluginHost for its
// lifetime and runs files to completion; cancellation is honored between
// files, never inside one.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	files, err := Discover(ctx, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{Stats: newStats()}
	result.Stats.FilesDiscovered = len(files)
	if len(files) == 0 {
		return result, nil
	}

	if r.store.Enabled() {
		if err := r.store.Load(); err != nil {
			// Cache failures are absorbed: disable and continue.
			logging.Default().Warn("disabling cache",
				logging.FieldError, err)
			r.store.Disable()
		}
	}

	jobs := opts.effectiveConfig().Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	if jobs > len(files) {
		jobs = len(files)
	}

	workCh := make(chan string)
	outCh := make(chan *FileOutcome)

	var wg sync.WaitGroup
	var workerErr error
	var workerErrOnce sync.Once

	for range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.worker(ctx, workCh, outCh, opts); err != nil {
				workerErrOnce.Do(func() { workerErr = err })
			}
		}()
	}

	// Feed work, observing cancellation between files.
	go func() {
		defer close(workCh)
		for _, path := range files {
			select {
			case <-ctx.Done():
				return
			case workCh <- path:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outCh)
	}()

	// Collect, then order deterministically by discovery order.
	outcomes := make(map[string]*FileOutcome, len(files))
	for outcome := range outCh {
		outcomes[outcome.Path] = outcome
	}
	for _, path := range files {
		if outcome, ok := outcomes[path]; ok {
			result.accumulate(outcome)
		}
	}

	if workerErr != nil {
		return result, workerErr
	}

	if r.store.Enabled() {
		if err := r.store.Save(); err != nil {
			logging.Default().Warn("failed to save cache",
				logging.FieldError, err)
		}
	}

	logging.Default().Debug("run complete",
		logging.FieldFilesDiscovered, result.Stats.FilesDiscovered,
		logging.FieldFilesProcessed, result.Stats.FilesProcessed,
		logging.FieldDiagnosticsTotal, result.Stats.DiagnosticsTotal)

	return result, nil
}

// worker drains workCh with a single pooled host. A host construction
// failure aborts the worker; it is surfaced as the run error.
func (r *Runner) worker(ctx context.Context, workCh <-chan string, outCh chan<- *FileOutcome, opts Options) error {
	var host *plugin.PluginHost

	defer func() {
		if host != nil {
			r.pool.Release(host)
		}
	}()

	for path := range workCh {
		if host == nil {
			var err error
			host, err = r.pool.Acquire(ctx)
			if err != nil {
				return fmt.Errorf("initialize plugin host: %w", err)
			}
		}

		// In-flight files run to completion and are always returned; only
		// the scheduling of new files observes cancellation.
		outCh <- r.processFile(ctx, host, path, opts)
	}
	return nil
}

// processFile lints one file and, when requested, applies its fixes.
func (r *Runner) processFile(ctx context.Context, host *plugin.PluginHost, path string, opts Options) *FileOutcome {
	outcome := &FileOutcome{Path: path}

	res, err := r.linter.LintFile(ctx, host, path)
	if err != nil {
		logging.Default().Warn("file failed",
			logging.FieldPath, path,
			logging.FieldError, err)
		outcome.Failure = &lint.FileFailure{Path: path, Err: err}
		return outcome
	}
	outcome.Result = res

	if (opts.Fix || opts.DryRun) && res.FixableCount() > 0 {
		outcome.Fixes = r.applyFixes(ctx, host, path, res, opts)
	}
	return outcome
}

// applyFixes coordinates and commits the file's fixes. In dry-run mode only
// the plan and diff are produced. Before writing, the file is re-checked for
// concurrent modification and optionally backed up.
func (r *Runner) applyFixes(ctx context.Context, host *plugin.PluginHost, path string, res *lint.FileResult, opts Options) *FixOutcome {
	content, info, err := fsutil.ReadFile(ctx, path)
	if err != nil {
		return &FixOutcome{Err: err}
	}

	if opts.DryRun {
		plan, err := fix.BuildPlan(res.Diagnostics, len(content))
		if err != nil {
			return &FixOutcome{Err: err}
		}
		fixed := fix.ApplyEdits(content, plan.Accepted)
		return &FixOutcome{
			Applied: len(plan.Accepted),
			Passes:  1,
			Diff:    fix.GenerateDiff(path, content, fixed),
		}
	}

	relint := func(buf []byte) ([]plugin.Diagnostic, error) {
		rres, err := r.linter.LintText(ctx, host, path, buf)
		if err != nil {
			return nil, err
		}
		return rres.Diagnostics, nil
	}

	applied, err := fix.Apply(content, res.Diagnostics, relint, opts.MaxFixPasses)
	outcome := &FixOutcome{Err: err}
	if applied != nil {
		outcome.Applied = applied.Applied
		outcome.Passes = applied.Passes

		if applied.Modified && err == nil {
			// Refuse to clobber a file someone else changed mid-run.
			if modified, cerr := fsutil.CheckModified(ctx, info); cerr != nil || modified {
				outcome.Err = fmt.Errorf("%s changed during lint; fixes not written", path)
				return outcome
			}
			if opts.Backup {
				backupCfg := fsutil.DefaultBackupConfig()
				backupCfg.Enabled = true
				if _, berr := fsutil.CreateBackup(ctx, path, backupCfg); berr != nil {
					outcome.Err = berr
					return outcome
				}
			}
			if werr := fsutil.WriteAtomic(ctx, path, applied.Content, 0); werr != nil {
				outcome.Err = werr
			} else {
				outcome.Written = true
				// The entry describes the pre-fix content; drop it so the
				// next run re-lints the rewritten file.
				r.store.Remove(path)
			}
		}
	}
	return outcome
}
