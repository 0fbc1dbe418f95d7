package intent

import (
	"context"
	"fmt"

	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// Backend executes one template's operation against its configured
// datasource. Every backend family produces (rows, error); rows are plain
// maps so response shaping stays backend-agnostic.
type Backend interface {
	Execute(ctx context.Context, tpl gatewaytypes.Template, params map[string]any) ([]map[string]any, error)
}

// BackendError wraps a wire-level failure from a datasource; callers
// truncate its message before exposing it on an adapter result.
type BackendError struct {
	Backend string
	Cause   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("intent: %s backend error: %v", e.Backend, e.Cause)
}

func (e *BackendError) Unwrap() error { return e.Cause }

// TruncateMessage caps an upstream error message at n runes, matching the
// "truncated upstream message" requirement without pulling in a templating
// dependency for a one-line operation.
func TruncateMessage(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Registry resolves a template's declared backend name to a Backend
// implementation, so the engine doesn't need a type switch per call.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry constructs an empty backend Registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register associates name (a Template.Backend value: sql|duckdb|mongo|http|graphql)
// with b.
func (r *Registry) Register(name string, b Backend) {
	r.backends[name] = b
}

// Get returns the backend registered for name, or an error naming the
// unknown backend.
func (r *Registry) Get(name string) (Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("intent: no backend registered for %q", name)
	}
	return b, nil
}
