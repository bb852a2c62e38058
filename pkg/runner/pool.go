package runner

import (
	"context"
	"sync"

	"github.com/yaklabco/kotoba/pkg/config"
	"github.com/yaklabco/kotoba/pkg/plugin"
)

// HostFactory builds a fully-initialized PluginHost: every configured rule
// loaded and configured exactly once.
type HostFactory func(ctx context.Context) (*plugin.PluginHost, error)

// DefaultHostFactory loads the configuration's rule bindings into a host
// over the build's default executor.
func DefaultHostFactory(cfg *config.Config) HostFactory {
	return func(ctx context.Context) (*plugin.PluginHost, error) {
		host := plugin.NewHost()
		for _, binding := range cfg.Rules {
			if _, err := host.LoadRuleFile(ctx, binding.Alias, binding.WasmPath); err != nil {
				host.Close()
				return nil, err
			}
			if opts := cfg.OptionsFor(binding.Alias); opts != nil {
				if err := host.ConfigureRule(ctx, binding.Alias, opts); err != nil {
					host.Close()
					return nil, err
				}
			}
		}
		return host, nil
	}
}

// HostPool hands out PluginHost instances, one per worker at a time. Release
// and reuse are strictly LIFO so the most recently exercised host, with the
// warmest caches, goes back out first.
type HostPool struct {
	mu      sync.Mutex
	stack   []*plugin.PluginHost
	factory HostFactory
}

// NewHostPool creates an empty pool over the factory.
func NewHostPool(factory HostFactory) *HostPool {
	return &HostPool{factory: factory}
}

// Acquire pops the most recently released host, or builds a new one.
func (p *HostPool) Acquire(ctx context.Context) (*plugin.PluginHost, error) {
	p.mu.Lock()
	if n := len(p.stack); n > 0 {
		host := p.stack[n-1]
		p.stack = p.stack[:n-1]
		p.mu.Unlock()
		return host, nil
	}
	p.mu.Unlock()
	return p.factory(ctx)
}

// Release returns a host to the top of the stack.
func (p *HostPool) Release(host *plugin.PluginHost) {
	if host == nil {
		return
	}
	p.mu.Lock()
	p.stack = append(p.stack, host)
	p.mu.Unlock()
}

// Available returns the number of idle hosts.
func (p *HostPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stack)
}

// Close releases every idle host.
func (p *HostPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, host := range p.stack {
		host.Close()
	}
	p.stack = nil
}
