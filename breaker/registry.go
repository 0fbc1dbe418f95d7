package breaker

import (
	"sync"

	"go.uber.org/zap"
)

// Registry is the circuit-breaker table: one entry per adapter name, each
// independently lockable, with no global lock across adapters.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]Breaker
	config   Config
	logger   *zap.Logger
}

// NewRegistry constructs an empty registry using config as the default for
// any adapter that does not declare its own fault-tolerance overrides.
func NewRegistry(config Config, logger *zap.Logger) *Registry {
	return &Registry{
		breakers: make(map[string]Breaker),
		config:   config,
		logger:   logger,
	}
}

// Get returns the breaker for name, creating it with the registry's default
// config on first use.
func (r *Registry) Get(name string) Breaker {
	return r.GetOrCreate(name, r.config)
}

// GetOrCreate returns the breaker for name, creating it with cfg if absent.
// An adapter whose descriptor declares FaultToleranceConfig overrides should
// call this once at adapter-instance construction time.
func (r *Registry) GetOrCreate(name string, cfg Config) Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = New(name, cfg, r.logger)
	r.breakers[name] = b
	return b
}

// All returns a snapshot of every registered breaker's state, for the
// health/adapters endpoint.
func (r *Registry) All() map[string]Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Breaker, len(r.breakers))
	for k, v := range r.breakers {
		out[k] = v
	}
	return out
}
