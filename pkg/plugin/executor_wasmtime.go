//go:build !wasminterp

package plugin

import (
	"context"
	"fmt"
	"strings"
	"time"

	wasmtime "github.com/bytecodealliance/wasmtime-go/v25"
)

// wasmtimeExecutor is the JIT back-end. Each instance gets its own store so
// limits apply per rule: an epoch deadline enforces the wall clock, fuel
// meters instructions, and a store limiter caps linear memory.
type wasmtimeExecutor struct {
	engine *wasmtime.Engine
	next   Handle
	rules  map[Handle]*wasmtimeRule
}

type wasmtimeRule struct {
	store    *wasmtime.Store
	instance *wasmtime.Instance
	limits   Limits
}

// NewDefaultExecutor creates the executor back-end compiled into this build.
func NewDefaultExecutor() Executor {
	cfg := wasmtime.NewConfig()
	cfg.SetConsumeFuel(true)
	cfg.SetEpochInterruption(true)
	return &wasmtimeExecutor{
		engine: wasmtime.NewEngineWithConfig(cfg),
		rules:  make(map[Handle]*wasmtimeRule),
	}
}

func (e *wasmtimeExecutor) Load(_ context.Context, wasm []byte, limits Limits) (Handle, error) {
	limits = limits.withDefaults()

	module, err := wasmtime.NewModule(e.engine, wasm)
	if err != nil {
		return 0, ruleErr(ErrLoadFailure, "", "compile: %v", err)
	}

	store := wasmtime.NewStore(e.engine)
	store.Limiter(int64(limits.MemoryBytes), -1, -1, -1, -1)
	if err := store.SetFuel(limits.Fuel); err != nil {
		return 0, ruleErr(ErrLoadFailure, "", "fuel: %v", err)
	}
	// Loading runs no guest code beyond data initializers; give it one
	// epoch so a hostile start section cannot hang the host.
	store.SetEpochDeadline(1)

	instance, err := wasmtime.NewInstance(store, module, nil)
	if err != nil {
		return 0, classifyWasmtime(err, ErrLoadFailure)
	}
	if instance.GetExport(store, "memory") == nil {
		return 0, ruleErr(ErrLoadFailure, "", "module exports no memory")
	}
	for _, export := range []string{"alloc", "get_manifest", "lint"} {
		if instance.GetFunc(store, export) == nil {
			return 0, ruleErr(ErrLoadFailure, "", "module missing export %q", export)
		}
	}

	e.next++
	e.rules[e.next] = &wasmtimeRule{store: store, instance: instance, limits: limits}
	return e.next, nil
}

func (e *wasmtimeExecutor) GetManifest(_ context.Context, h Handle) ([]byte, error) {
	r, ok := e.rules[h]
	if !ok {
		return nil, ruleErr(ErrNotFound, "", "unknown handle %d", h)
	}
	return e.callPacked(r, "get_manifest")
}

func (e *wasmtimeExecutor) Configure(_ context.Context, h Handle, config []byte) error {
	r, ok := e.rules[h]
	if !ok {
		return ruleErr(ErrNotFound, "", "unknown handle %d", h)
	}
	fn := r.instance.GetFunc(r.store, "configure")
	if fn == nil {
		return nil
	}

	ptr, err := e.writeGuest(r, config)
	if err != nil {
		return err
	}
	stop := e.arm(r)
	defer stop()
	ret, err := fn.Call(r.store, int32(ptr), int32(len(config)))
	if err != nil {
		return classifyWasmtime(err, ErrConfigRejected)
	}
	if code, ok := ret.(int32); ok && code != 0 {
		return ruleErr(ErrConfigRejected, "", "configure returned %d", code)
	}
	return nil
}

func (e *wasmtimeExecutor) Lint(_ context.Context, h Handle, request []byte) ([]byte, error) {
	r, ok := e.rules[h]
	if !ok {
		return nil, ruleErr(ErrNotFound, "", "unknown handle %d", h)
	}

	ptr, err := e.writeGuest(r, request)
	if err != nil {
		return nil, err
	}

	// Refill the per-call instruction budget.
	if err := r.store.SetFuel(r.limits.Fuel); err != nil {
		return nil, ruleErr(ErrTrap, "", "fuel reset: %v", err)
	}

	stop := e.arm(r)
	defer stop()

	fn := r.instance.GetFunc(r.store, "lint")
	ret, err := fn.Call(r.store, int32(ptr), int32(len(request)))
	if err != nil {
		return nil, classifyWasmtime(err, ErrTrap)
	}
	return e.readPacked(r, ret)
}

func (e *wasmtimeExecutor) Unload(h Handle) {
	delete(e.rules, h)
}

func (e *wasmtimeExecutor) Close() {
	e.rules = make(map[Handle]*wasmtimeRule)
}

// arm schedules an epoch bump at the rule's wall-clock limit and resets the
// store deadline. The returned stop function cancels the timer.
func (e *wasmtimeExecutor) arm(r *wasmtimeRule) func() {
	r.store.SetEpochDeadline(1)
	timer := time.AfterFunc(r.limits.WallClock, func() {
		e.engine.IncrementEpoch()
	})
	return func() { timer.Stop() }
}

// writeGuest copies data into guest memory via the module's allocator and
// returns the guest pointer.
func (e *wasmtimeExecutor) writeGuest(r *wasmtimeRule, data []byte) (uint32, error) {
	alloc := r.instance.GetFunc(r.store, "alloc")
	stop := e.arm(r)
	defer stop()
	ret, err := alloc.Call(r.store, int32(len(data)))
	if err != nil {
		return 0, classifyWasmtime(err, ErrMemoryLimit)
	}
	ptr, ok := ret.(int32)
	if !ok {
		return 0, ruleErr(ErrProtocolViolation, "", "alloc returned %T", ret)
	}

	mem := r.instance.GetExport(r.store, "memory").Memory()
	buf := mem.UnsafeData(r.store)
	if int(ptr) < 0 || int(ptr)+len(data) > len(buf) {
		return 0, ruleErr(ErrProtocolViolation, "",
			"alloc returned out-of-range pointer %d for %d bytes", ptr, len(data))
	}
	copy(buf[ptr:], data)
	return uint32(ptr), nil
}

// callPacked invokes a niladic export returning a packed ptr/len pair.
func (e *wasmtimeExecutor) callPacked(r *wasmtimeRule, name string) ([]byte, error) {
	fn := r.instance.GetFunc(r.store, name)
	if fn == nil {
		return nil, ruleErr(ErrProtocolViolation, "", "missing export %q", name)
	}
	stop := e.arm(r)
	defer stop()
	ret, err := fn.Call(r.store)
	if err != nil {
		return nil, classifyWasmtime(err, ErrTrap)
	}
	return e.readPacked(r, ret)
}

// readPacked copies a packed ptr/len result out of guest memory.
func (e *wasmtimeExecutor) readPacked(r *wasmtimeRule, ret any) ([]byte, error) {
	packed, ok := ret.(int64)
	if !ok {
		return nil, ruleErr(ErrProtocolViolation, "", "export returned %T, want i64", ret)
	}
	ptr, length := packedPtrLen(uint64(packed))

	mem := r.instance.GetExport(r.store, "memory").Memory()
	buf := mem.UnsafeData(r.store)
	if int(ptr)+int(length) > len(buf) {
		return nil, ruleErr(ErrProtocolViolation, "",
			"result [%d, %d) outside guest memory", ptr, uint64(ptr)+uint64(length))
	}
	out := make([]byte, length)
	copy(out, buf[ptr:int(ptr)+int(length)])
	return out, nil
}

// classifyWasmtime maps a wasmtime error onto the rule error taxonomy.
func classifyWasmtime(err error, fallback ErrorKind) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "fuel"):
		// Instruction budget exhausted: the CPU analog of a timeout.
		return &RuleError{Kind: ErrTimeout, Err: fmt.Errorf("instruction limit: %w", err)}
	case strings.Contains(msg, "epoch"), strings.Contains(msg, "interrupt"):
		return &RuleError{Kind: ErrTimeout, Err: err}
	case strings.Contains(msg, "memory") && strings.Contains(msg, "grow"),
		strings.Contains(msg, "limit"):
		return &RuleError{Kind: ErrMemoryLimit, Err: err}
	default:
		return &RuleError{Kind: fallback, Err: err}
	}
}
