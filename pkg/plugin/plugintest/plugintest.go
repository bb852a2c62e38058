// Package plugintest provides a scripted in-process Executor so host and
// driver behavior can be tested without real WASM modules. A module is
// registered under a key; "loading" the key's bytes instantiates it.
package plugintest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yaklabco/kotoba/pkg/plugin"
)

// Request is the decoded lint request a scripted rule receives.
type Request struct {
	Nodes     []json.RawMessage `json:"nodes"`
	Config    json.RawMessage   `json:"config"`
	Source    string            `json:"source"`
	FilePath  string            `json:"file_path"`
	Tokens    []json.RawMessage `json:"tokens"`
	Sentences []json.RawMessage `json:"sentences"`
}

// Module is a scripted rule. Lint receives the decoded request; a nil Lint
// returns no diagnostics. RawLint, when set, bypasses decoding entirely and
// may return malformed bytes to provoke protocol errors.
type Module struct {
	Manifest plugin.Manifest
	Lint     func(req *Request) ([]plugin.Diagnostic, error)
	RawLint  func(request []byte) ([]byte, error)

	// Calls counts lint invocations, letting tests assert cache behavior.
	Calls int
	// LastConfig records the most recent configure payload.
	LastConfig []byte
}

// Executor is a scripted plugin.Executor. Register modules, then load them
// with WasmKey(name) as the module bytes.
type Executor struct {
	modules map[string]*Module
	loaded  map[plugin.Handle]*Module
	next    plugin.Handle
	// LoadErr, when set, fails every Load.
	LoadErr error
}

// NewExecutor creates an empty scripted executor.
func NewExecutor() *Executor {
	return &Executor{
		modules: make(map[string]*Module),
		loaded:  make(map[plugin.Handle]*Module),
	}
}

// Register adds a module under key.
func (e *Executor) Register(key string, m *Module) {
	e.modules[key] = m
}

// WasmKey returns the stand-in module bytes for a registered key.
func WasmKey(key string) []byte {
	return []byte("plugintest:" + key)
}

// Module returns a registered module for assertions.
func (e *Executor) Module(key string) *Module {
	return e.modules[key]
}

// Load implements plugin.Executor.
func (e *Executor) Load(_ context.Context, wasm []byte, _ plugin.Limits) (plugin.Handle, error) {
	if e.LoadErr != nil {
		return 0, e.LoadErr
	}
	key := string(wasm)
	const prefix = "plugintest:"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		key = key[len(prefix):]
	}
	m, ok := e.modules[key]
	if !ok {
		return 0, &plugin.RuleError{Kind: plugin.ErrLoadFailure,
			Err: fmt.Errorf("no scripted module %q", key)}
	}
	e.next++
	e.loaded[e.next] = m
	return e.next, nil
}

// GetManifest implements plugin.Executor.
func (e *Executor) GetManifest(_ context.Context, h plugin.Handle) ([]byte, error) {
	m, ok := e.loaded[h]
	if !ok {
		return nil, &plugin.RuleError{Kind: plugin.ErrNotFound,
			Err: fmt.Errorf("handle %d", h)}
	}
	return json.Marshal(&m.Manifest)
}

// Configure implements plugin.Executor.
func (e *Executor) Configure(_ context.Context, h plugin.Handle, config []byte) error {
	m, ok := e.loaded[h]
	if !ok {
		return &plugin.RuleError{Kind: plugin.ErrNotFound,
			Err: fmt.Errorf("handle %d", h)}
	}
	m.LastConfig = config
	return nil
}

// Lint implements plugin.Executor.
func (e *Executor) Lint(_ context.Context, h plugin.Handle, request []byte) ([]byte, error) {
	m, ok := e.loaded[h]
	if !ok {
		return nil, &plugin.RuleError{Kind: plugin.ErrNotFound,
			Err: fmt.Errorf("handle %d", h)}
	}
	m.Calls++

	if m.RawLint != nil {
		return m.RawLint(request)
	}

	var req Request
	if err := json.Unmarshal(request, &req); err != nil {
		return nil, &plugin.RuleError{Kind: plugin.ErrProtocolViolation, Err: err}
	}

	var diags []plugin.Diagnostic
	if m.Lint != nil {
		var err error
		diags, err = m.Lint(&req)
		if err != nil {
			return nil, err
		}
	}
	if diags == nil {
		diags = []plugin.Diagnostic{}
	}
	return json.Marshal(&plugin.LintResponse{Diagnostics: diags})
}

// Unload implements plugin.Executor.
func (e *Executor) Unload(h plugin.Handle) {
	delete(e.loaded, h)
}

// Close implements plugin.Executor.
func (e *Executor) Close() {
	e.loaded = make(map[plugin.Handle]*Module)
}
