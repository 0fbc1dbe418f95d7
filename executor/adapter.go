package executor

import (
	"context"

	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// Adapter is the single capability every retrieval adapter exposes: no
// inheritance, one method, concrete variants implement it directly
// (intent-sql, intent-mongo, intent-http, intent-graphql, and the direct
// retriever.Retriever wrapper).
type Adapter interface {
	Retrieve(ctx context.Context, query string, options map[string]any) ([]gatewaytypes.ContextItem, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, query string, options map[string]any) ([]gatewaytypes.ContextItem, error)

// Retrieve implements Adapter.
func (f AdapterFunc) Retrieve(ctx context.Context, query string, options map[string]any) ([]gatewaytypes.ContextItem, error) {
	return f(ctx, query, options)
}
