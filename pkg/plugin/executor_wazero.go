//go:build wasminterp

package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
)

const wasmPageSize = 64 * 1024

// wazeroExecutor is the pure-Go interpreter back-end, used when the host is
// itself compiled to WASM or cgo is unavailable. Memory is capped through the
// runtime page limit; the wall clock doubles as the CPU bound because the
// interpreter has no deterministic instruction meter.
type wazeroExecutor struct {
	next  Handle
	rules map[Handle]*wazeroRule
}

type wazeroRule struct {
	runtime wazero.Runtime
	module  api.Module
	limits  Limits
}

// NewDefaultExecutor creates the executor back-end compiled into this build.
func NewDefaultExecutor() Executor {
	return &wazeroExecutor{rules: make(map[Handle]*wazeroRule)}
}

func (e *wazeroExecutor) Load(ctx context.Context, wasm []byte, limits Limits) (Handle, error) {
	limits = limits.withDefaults()

	pages := uint32(limits.MemoryBytes / wasmPageSize)
	if pages == 0 {
		pages = 1
	}
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter().
		WithMemoryLimitPages(pages).
		WithCloseOnContextDone(true))

	// No host modules are registered: the guest sees no filesystem, network,
	// environment, or clock imports.
	mod, err := rt.InstantiateWithConfig(ctx, wasm, wazero.NewModuleConfig().
		WithName("rule").
		WithStartFunctions())
	if err != nil {
		_ = rt.Close(ctx)
		return 0, classifyWazero(err, ErrLoadFailure)
	}
	if mod.Memory() == nil {
		_ = rt.Close(ctx)
		return 0, ruleErr(ErrLoadFailure, "", "module exports no memory")
	}
	for _, export := range []string{"alloc", "get_manifest", "lint"} {
		if mod.ExportedFunction(export) == nil {
			_ = rt.Close(ctx)
			return 0, ruleErr(ErrLoadFailure, "", "module missing export %q", export)
		}
	}

	e.next++
	e.rules[e.next] = &wazeroRule{runtime: rt, module: mod, limits: limits}
	return e.next, nil
}

func (e *wazeroExecutor) GetManifest(ctx context.Context, h Handle) ([]byte, error) {
	r, ok := e.rules[h]
	if !ok {
		return nil, ruleErr(ErrNotFound, "", "unknown handle %d", h)
	}
	return e.callPacked(ctx, r, "get_manifest")
}

func (e *wazeroExecutor) Configure(ctx context.Context, h Handle, config []byte) error {
	r, ok := e.rules[h]
	if !ok {
		return ruleErr(ErrNotFound, "", "unknown handle %d", h)
	}
	fn := r.module.ExportedFunction("configure")
	if fn == nil {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, r.limits.WallClock)
	defer cancel()

	ptr, err := e.writeGuest(cctx, r, config)
	if err != nil {
		return err
	}
	ret, err := fn.Call(cctx, uint64(ptr), uint64(len(config)))
	if err != nil {
		return classifyWazero(err, ErrConfigRejected)
	}
	if len(ret) == 1 && uint32(ret[0]) != 0 {
		return ruleErr(ErrConfigRejected, "", "configure returned %d", uint32(ret[0]))
	}
	return nil
}

func (e *wazeroExecutor) Lint(ctx context.Context, h Handle, request []byte) ([]byte, error) {
	r, ok := e.rules[h]
	if !ok {
		return nil, ruleErr(ErrNotFound, "", "unknown handle %d", h)
	}

	cctx, cancel := context.WithTimeout(ctx, r.limits.WallClock)
	defer cancel()

	ptr, err := e.writeGuest(cctx, r, request)
	if err != nil {
		return nil, err
	}
	ret, err := r.module.ExportedFunction("lint").Call(cctx, uint64(ptr), uint64(len(request)))
	if err != nil {
		return nil, classifyWazero(err, ErrTrap)
	}
	return e.readPacked(r, ret)
}

func (e *wazeroExecutor) Unload(h Handle) {
	if r, ok := e.rules[h]; ok {
		_ = r.runtime.Close(context.Background())
		delete(e.rules, h)
	}
}

func (e *wazeroExecutor) Close() {
	for h := range e.rules {
		e.Unload(h)
	}
}

func (e *wazeroExecutor) writeGuest(ctx context.Context, r *wazeroRule, data []byte) (uint32, error) {
	ret, err := r.module.ExportedFunction("alloc").Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, classifyWazero(err, ErrMemoryLimit)
	}
	if len(ret) != 1 {
		return 0, ruleErr(ErrProtocolViolation, "", "alloc returned %d values", len(ret))
	}
	ptr := uint32(ret[0])
	if !r.module.Memory().Write(ptr, data) {
		return 0, ruleErr(ErrProtocolViolation, "",
			"alloc returned out-of-range pointer %d for %d bytes", ptr, len(data))
	}
	return ptr, nil
}

func (e *wazeroExecutor) callPacked(ctx context.Context, r *wazeroRule, name string) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, r.limits.WallClock)
	defer cancel()

	ret, err := r.module.ExportedFunction(name).Call(cctx)
	if err != nil {
		return nil, classifyWazero(err, ErrTrap)
	}
	return e.readPacked(r, ret)
}

func (e *wazeroExecutor) readPacked(r *wazeroRule, ret []uint64) ([]byte, error) {
	if len(ret) != 1 {
		return nil, ruleErr(ErrProtocolViolation, "", "export returned %d values", len(ret))
	}
	ptr, length := packedPtrLen(ret[0])
	out, ok := r.module.Memory().Read(ptr, length)
	if !ok {
		return nil, ruleErr(ErrProtocolViolation, "",
			"result [%d, %d) outside guest memory", ptr, uint64(ptr)+uint64(length))
	}
	// Read returns a view into guest memory; copy before the guest runs again.
	cp := make([]byte, len(out))
	copy(cp, out)
	return cp, nil
}

// classifyWazero maps a wazero error onto the rule error taxonomy.
func classifyWazero(err error, fallback ErrorKind) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &RuleError{Kind: ErrTimeout, Err: err}
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		return &RuleError{Kind: ErrTrap, Err: err}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline"), strings.Contains(msg, "context canceled"):
		return &RuleError{Kind: ErrTimeout, Err: err}
	case strings.Contains(msg, "memory"), strings.Contains(msg, "page"):
		return &RuleError{Kind: ErrMemoryLimit, Err: fmt.Errorf("memory limit: %w", err)}
	default:
		return &RuleError{Kind: fallback, Err: err}
	}
}
