package configloader

import (
	"os"
	"strconv"

	"github.com/yaklabco/kotoba/pkg/config"
)

// Environment variables overriding the loaded configuration.
const (
	envCacheDir     = "KOTOBA_CACHE_DIR"
	envCacheEnabled = "KOTOBA_CACHE"
	envJobs         = "KOTOBA_JOBS"
	envTimings      = "KOTOBA_TIMINGS"
)

// applyEnv overlays environment overrides on cfg. Unparseable values are
// ignored rather than fatal.
func applyEnv(cfg *config.Config) {
	if v := os.Getenv(envCacheDir); v != "" {
		cfg.Cache.Directory = v
	}
	if v := os.Getenv(envCacheEnabled); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = enabled
		}
	}
	if v := os.Getenv(envJobs); v != "" {
		if jobs, err := strconv.Atoi(v); err == nil && jobs > 0 {
			cfg.Jobs = jobs
		}
	}
	if v := os.Getenv(envTimings); v != "" {
		if timings, err := strconv.ParseBool(v); err == nil {
			cfg.Timings = timings
		}
	}
}
