package executor

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// BuildFunc constructs a live Adapter from its descriptor. It may be slow
// (opening connections, resolving a template library) — InstanceCache
// coalesces concurrent builds for the same descriptor via singleflight.
type BuildFunc func(desc gatewaytypes.AdapterDescriptor) (Adapter, error)

// InstanceCache is the adapter-instance cache: read-mostly, created lazily
// on first reference, cached by name, and invalidated when the
// descriptor's content hash changes. Reload swaps entries under a write
// lock, which drains any readers holding the prior read lock before the
// swap is visible, implemented with sync.RWMutex rather than a hand-rolled
// generation counter.
type InstanceCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	build   BuildFunc
	group   singleflight.Group
}

type cacheEntry struct {
	hash     string
	instance Adapter
}

// NewInstanceCache constructs an empty cache using build to materialize
// adapters on miss.
func NewInstanceCache(build BuildFunc) *InstanceCache {
	return &InstanceCache{
		entries: make(map[string]cacheEntry),
		build:   build,
	}
}

// Get returns the cached instance for desc, rebuilding it if absent or if
// desc's content hash differs from what is cached (descriptor changed since
// the entry was built).
func (c *InstanceCache) Get(desc gatewaytypes.AdapterDescriptor) (Adapter, error) {
	hash := desc.ContentHash()

	c.mu.RLock()
	entry, ok := c.entries[desc.Name]
	c.mu.RUnlock()
	if ok && entry.hash == hash {
		return entry.instance, nil
	}

	v, err, _ := c.group.Do(desc.Name+":"+hash, func() (any, error) {
		return c.build(desc)
	})
	if err != nil {
		return nil, err
	}
	instance := v.(Adapter)

	c.mu.Lock()
	c.entries[desc.Name] = cacheEntry{hash: hash, instance: instance}
	c.mu.Unlock()

	return instance, nil
}

// Invalidate drops name from the cache, forcing a rebuild on next Get.
func (c *InstanceCache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

// Names returns the currently cached adapter names.
func (c *InstanceCache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	return names
}

// ReplaceAll atomically swaps the cache contents to reflect a full
// hot-reload, reporting an added/removed/updated/unchanged summary keyed by
// adapter name. Descriptors not present in descs are dropped.
func (c *InstanceCache) ReplaceAll(descs []gatewaytypes.AdapterDescriptor) ReloadSummary {
	wanted := make(map[string]gatewaytypes.AdapterDescriptor, len(descs))
	for _, d := range descs {
		wanted[d.Name] = d
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	summary := ReloadSummary{}
	next := make(map[string]cacheEntry, len(descs))

	for name, desc := range wanted {
		hash := desc.ContentHash()
		if existing, ok := c.entries[name]; ok {
			if existing.hash == hash {
				next[name] = existing
				summary.Unchanged++
				continue
			}
			summary.Updated++
			continue // rebuilt lazily on next Get
		}
		summary.Added++
	}
	for name := range c.entries {
		if _, ok := wanted[name]; !ok {
			summary.Removed++
		}
	}

	c.entries = next
	return summary
}

// ReloadSummary describes the outcome of a hot-reload, surfaced by
// POST /admin/reload-adapters.
type ReloadSummary struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}
