package plugin

import (
	"context"
	"time"
)

// Limits bound a rule instance's resource use. The zero value means
// "use defaults".
type Limits struct {
	// MemoryBytes caps the instance's linear memory.
	MemoryBytes uint64
	// Fuel caps executed instructions per lint call, on back-ends that can
	// meter them.
	Fuel uint64
	// WallClock caps the real time of a single lint call.
	WallClock time.Duration
}

// Resource limit defaults.
const (
	DefaultMemoryBytes = 128 << 20
	DefaultFuel        = 1_000_000_000
	DefaultWallClock   = 5 * time.Second
)

// withDefaults fills unset fields.
func (l Limits) withDefaults() Limits {
	if l.MemoryBytes == 0 {
		l.MemoryBytes = DefaultMemoryBytes
	}
	if l.Fuel == 0 {
		l.Fuel = DefaultFuel
	}
	if l.WallClock == 0 {
		l.WallClock = DefaultWallClock
	}
	return l
}

// Handle identifies a loaded rule instance within an Executor.
type Handle int64

// Executor runs WASM rule modules under resource limits. Implementations are
// not safe for concurrent use; the driver gives each worker its own host.
//
// The guest ABI: a module exports `memory`, `alloc(size u32) -> u32`,
// `get_manifest() -> u64` and `lint(ptr u32, len u32) -> u64`, where a u64
// result packs a pointer in the high 32 bits and a length in the low 32.
// An optional `configure(ptr u32, len u32) -> u32` export receives the rule
// configuration at setup; a non-zero return rejects it. No filesystem,
// network, environment, or host clock is reachable from the guest.
type Executor interface {
	// Load instantiates a module under the given limits.
	Load(ctx context.Context, wasm []byte, limits Limits) (Handle, error)

	// GetManifest invokes the module's get_manifest export and returns the
	// raw payload.
	GetManifest(ctx context.Context, h Handle) ([]byte, error)

	// Configure passes a serialized configuration value to the module's
	// configure export, when present.
	Configure(ctx context.Context, h Handle, config []byte) error

	// Lint invokes the module's lint export with a serialized request and
	// returns the serialized response.
	Lint(ctx context.Context, h Handle, request []byte) ([]byte, error)

	// Unload releases a loaded instance.
	Unload(h Handle)

	// Close releases the executor and every remaining instance.
	Close()
}

// packedPtrLen splits a guest u64 return into pointer and length.
func packedPtrLen(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}
