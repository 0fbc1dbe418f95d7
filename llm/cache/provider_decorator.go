package cache

import (
	"context"

	llmpkg "github.com/orbit-gateway/orbit/llm"
	"go.uber.org/zap"
)

// CachedProvider wraps an llmpkg.Provider with a MultiLevelCache: deterministic,
// non-streaming completions are served from cache before falling through to
// the underlying provider. Streaming requests always bypass the cache since
// a cached response has no chunk boundaries to replay.
type CachedProvider struct {
	provider llmpkg.Provider
	cache    *MultiLevelCache
	logger   *zap.Logger
}

// NewCachedProvider constructs a CachedProvider backed by cache.
func NewCachedProvider(provider llmpkg.Provider, cache *MultiLevelCache, logger *zap.Logger) *CachedProvider {
	return &CachedProvider{provider: provider, cache: cache, logger: logger}
}

// Completion implements llmpkg.Provider. A cache hit returns the stored
// response without calling the underlying provider; a miss falls through
// and stores the result for next time.
func (c *CachedProvider) Completion(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatResponse, error) {
	if !c.cache.IsCacheable(req) {
		return c.provider.Completion(ctx, req)
	}

	key := c.cache.GenerateKey(req)
	if entry, err := c.cache.Get(ctx, key); err == nil {
		if resp, ok := entry.Response.(*llmpkg.ChatResponse); ok {
			c.logger.Debug("prompt cache hit", zap.String("key", key))
			return resp, nil
		}
	}

	resp, err := c.provider.Completion(ctx, req)
	if err != nil {
		return nil, err
	}

	if setErr := c.cache.Set(ctx, key, &CacheEntry{Response: resp, ModelVersion: req.Model}); setErr != nil {
		c.logger.Warn("prompt cache set failed", zap.Error(setErr), zap.String("key", key))
	}
	return resp, nil
}

// Stream implements llmpkg.Provider, always bypassing the cache.
func (c *CachedProvider) Stream(ctx context.Context, req *llmpkg.ChatRequest) (<-chan llmpkg.StreamChunk, error) {
	return c.provider.Stream(ctx, req)
}

// HealthCheck implements llmpkg.Provider, delegating to the underlying provider.
func (c *CachedProvider) HealthCheck(ctx context.Context) (*llmpkg.HealthStatus, error) {
	return c.provider.HealthCheck(ctx)
}

// Name implements llmpkg.Provider.
func (c *CachedProvider) Name() string {
	return c.provider.Name()
}

// SupportsNativeFunctionCalling implements llmpkg.Provider.
func (c *CachedProvider) SupportsNativeFunctionCalling() bool {
	return c.provider.SupportsNativeFunctionCalling()
}
