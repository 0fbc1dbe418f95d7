// Package embedclient defines the pluggable embedding-provider boundary,
// plus one reference HTTP implementation so the gateway is runnable end to
// end. Mirrors the llm/providers/openai client shape (config + http.Client
// + context-aware calls), generalized to embeddings only.
package embedclient

import "context"

// Provider embeds text into a fixed-dimension vector space. Implementations
// must be safe for concurrent use.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
