// Package datasource provides typed connection pools to the backends intent
// adapters execute operations against: SQL databases, MongoDB, and plain
// HTTP/GraphQL APIs. Each pool is looked up by the symbolic name an
// gatewaytypes.AdapterDescriptor.Datasource carries; lifecycle (open,
// health-check, close) is owned here so adapters never dial a backend
// themselves.
//
// Mirrors internal/database.PoolManager's health-check-loop-over-Ping
// shape, generalized from a single *gorm.DB to a named registry of
// heterogeneous backends.
package datasource

import (
	"context"
	"fmt"
	"sync"
)

// DataSource is the capability every connection pool exposes regardless of
// backend family.
type DataSource interface {
	// Kind identifies the backend family: "sql", "duckdb", "mongo", "http".
	Kind() string
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases any held resources.
	Close() error
}

// Registry resolves symbolic datasource names (as carried on
// gatewaytypes.AdapterDescriptor.Datasource) to live DataSource instances.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]DataSource
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]DataSource)}
}

// Register adds or replaces the datasource registered under name, closing
// any prior instance.
func (r *Registry) Register(name string, ds DataSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sources[name]; ok {
		_ = existing.Close()
	}
	r.sources[name] = ds
}

// Get returns the datasource registered under name.
func (r *Registry) Get(name string) (DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("datasource: no datasource registered under %q", name)
	}
	return ds, nil
}

// HealthCheck pings every registered datasource and returns the per-name
// error (nil on success), surfaced by GET /health/system.
func (r *Registry) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	names := make([]string, 0, len(r.sources))
	sources := make(map[string]DataSource, len(r.sources))
	for name, ds := range r.sources {
		names = append(names, name)
		sources[name] = ds
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(names))
	for _, name := range names {
		results[name] = sources[name].Ping(ctx)
	}
	return results
}

// Close closes every registered datasource, collecting (not stopping on)
// errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, ds := range r.sources {
		if err := ds.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("datasource %q: %w", name, err)
		}
	}
	r.sources = make(map[string]DataSource)
	return firstErr
}

// Names returns the currently registered datasource names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}
