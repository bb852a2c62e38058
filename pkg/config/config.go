// Package config defines the configuration the lint driver consumes. These
// are pure data structures: file discovery, YAML parsing, and merging live in
// the configloader, which hands the core an already-resolved Config.
package config

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/yaklabco/kotoba/pkg/plugin"
)

// RuleBinding resolves one configured rule: the alias that identifies it in
// diagnostics and the WASM module implementing it. Aliases are unique per
// driver instance; callers disambiguate colliding short names with `as`
// before handing the configuration to the core.
type RuleBinding struct {
	// Alias is the unique rule id used in diagnostics.
	Alias string `yaml:"alias" json:"alias"`

	// WasmPath locates the resolved rule module on disk.
	WasmPath string `yaml:"wasm_path" json:"wasm_path"`

	// Severity overrides the reported severity for this rule's diagnostics.
	// Empty keeps what the rule reports.
	Severity plugin.Severity `yaml:"severity,omitempty" json:"severity,omitempty"`
}

// CacheConfig controls the incremental cache.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Directory string `yaml:"directory" json:"directory"`
}

// DefaultCacheDir is used when the configuration names no cache directory.
const DefaultCacheDir = ".kotoba-cache"

// Config is the resolved driver configuration.
type Config struct {
	// Rules lists the rule bindings in configured order.
	Rules []RuleBinding `yaml:"rules" json:"rules"`

	// Options carries per-rule configuration, keyed by alias, injected into
	// the rule after load.
	Options map[string]json.RawMessage `yaml:"options,omitempty" json:"options,omitempty"`

	// Include and Exclude are glob patterns bounding file discovery.
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`

	// Cache configures the incremental cache.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Timings enables per-rule and per-phase wall-clock accumulation.
	Timings bool `yaml:"timings,omitempty" json:"timings,omitempty"`

	// Jobs bounds worker parallelism; 0 means one per hardware core.
	Jobs int `yaml:"jobs,omitempty" json:"jobs,omitempty"`
}

// Default returns a configuration with caching enabled in the default
// directory and no rules bound.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{Enabled: true, Directory: DefaultCacheDir},
	}
}

// Error is a configuration failure, surfaced before any file is processed.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return "config: " + e.Message
}

func configErr(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Validate checks structural requirements: non-empty unique aliases, wasm
// paths present, known severities, and options that refer to bound rules.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Rules))
	for _, r := range c.Rules {
		if r.Alias == "" {
			return configErr("rule binding without alias")
		}
		if seen[r.Alias] {
			return configErr("duplicate rule alias %q; disambiguate with `as`", r.Alias)
		}
		seen[r.Alias] = true
		if r.WasmPath == "" {
			return configErr("rule %q has no wasm path", r.Alias)
		}
		if r.Severity != "" && !r.Severity.Valid() {
			return configErr("rule %q: unknown severity %q", r.Alias, r.Severity)
		}
	}
	for alias, raw := range c.Options {
		if !seen[alias] {
			return configErr("options for unknown rule alias %q", alias)
		}
		if len(raw) > 0 && !json.Valid(raw) {
			return configErr("options for rule %q are not valid JSON", alias)
		}
	}
	if c.Cache.Enabled && c.Cache.Directory == "" {
		return configErr("cache enabled without a directory")
	}
	return nil
}

// Binding returns the binding for alias, or nil.
func (c *Config) Binding(alias string) *RuleBinding {
	for i := range c.Rules {
		if c.Rules[i].Alias == alias {
			return &c.Rules[i]
		}
	}
	return nil
}

// OptionsFor returns the configured options for alias, or nil.
func (c *Config) OptionsFor(alias string) json.RawMessage {
	if c.Options == nil {
		return nil
	}
	return c.Options[alias]
}

// Hash fingerprints the parts of the configuration that affect lint output.
// Equal configurations hash equally regardless of map iteration order.
func (c *Config) Hash() [32]byte {
	h := blake3.New()

	for _, r := range c.Rules {
		fmt.Fprintf(h, "rule\x00%s\x00%s\x00%s\x00", r.Alias, r.WasmPath, r.Severity)
	}

	aliases := make([]string, 0, len(c.Options))
	for alias := range c.Options {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		fmt.Fprintf(h, "opt\x00%s\x00%s\x00", alias, c.Options[alias])
	}

	var out [32]byte
	h.Sum(out[:0])
	return out
}
