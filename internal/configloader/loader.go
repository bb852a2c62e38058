// Package configloader loads and resolves the YAML configuration the CLI
// hands to the core: file discovery, parsing, alias resolution, and
// environment overrides. The core itself never reads configuration files.
package configloader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yaklabco/kotoba/pkg/config"
	"github.com/yaklabco/kotoba/pkg/plugin"
)

// fileRule is one rule entry as written in the configuration file: either a
// bare string (the wasm path, aliased by its basename) or a detailed form.
type fileRule struct {
	Path     string          `yaml:"path"`
	As       string          `yaml:"as"`
	Severity plugin.Severity `yaml:"severity"`
}

// UnmarshalYAML accepts both the string shorthand and the detailed object.
func (r *fileRule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&r.Path)
	}
	type plain fileRule
	return node.Decode((*plain)(r))
}

// fileConfig is the on-disk YAML schema.
type fileConfig struct {
	Rules   []fileRule           `yaml:"rules"`
	Options map[string]yaml.Node `yaml:"options"`
	Include []string             `yaml:"include"`
	Exclude []string             `yaml:"exclude"`
	Cache   struct {
		Enabled   *bool  `yaml:"enabled"`
		Directory string `yaml:"directory"`
	} `yaml:"cache"`
	Timings bool `yaml:"timings"`
	Jobs    int  `yaml:"jobs"`
}

// Load reads the configuration at path, or discovers one upward from dir
// when path is empty, and resolves it into a validated core configuration.
// With neither present, defaults apply.
func Load(path, dir string) (*config.Config, error) {
	if path == "" {
		path = Discover(dir)
	}
	if path == "" {
		cfg := config.Default()
		applyEnv(cfg)
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg, err := resolve(&fc, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// resolve maps the file schema onto the core configuration, resolving each
// rule's alias and joining relative wasm paths onto the config file's
// directory.
func resolve(fc *fileConfig, baseDir string) (*config.Config, error) {
	cfg := config.Default()
	cfg.Include = fc.Include
	cfg.Exclude = fc.Exclude
	cfg.Timings = fc.Timings
	cfg.Jobs = fc.Jobs

	if fc.Cache.Enabled != nil {
		cfg.Cache.Enabled = *fc.Cache.Enabled
	}
	if fc.Cache.Directory != "" {
		cfg.Cache.Directory = fc.Cache.Directory
	}

	for _, fr := range fc.Rules {
		if fr.Path == "" {
			return nil, fmt.Errorf("rule entry without a path")
		}
		wasmPath := fr.Path
		if !filepath.IsAbs(wasmPath) {
			wasmPath = filepath.Join(baseDir, wasmPath)
		}
		cfg.Rules = append(cfg.Rules, config.RuleBinding{
			Alias:    ResolveAlias(fr.As, fr.Path),
			WasmPath: wasmPath,
			Severity: fr.Severity,
		})
	}

	if len(fc.Options) > 0 {
		cfg.Options = make(map[string]json.RawMessage, len(fc.Options))
		for alias, node := range fc.Options {
			raw, err := yamlToJSON(&node)
			if err != nil {
				return nil, fmt.Errorf("options for %q: %w", alias, err)
			}
			cfg.Options[alias] = raw
		}
	}

	return cfg, nil
}

// yamlToJSON re-encodes a YAML value as JSON, the form rules consume.
func yamlToJSON(node *yaml.Node) (json.RawMessage, error) {
	var value any
	if err := node.Decode(&value); err != nil {
		return nil, err
	}
	return json.Marshal(value)
}
