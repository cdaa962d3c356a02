package criteria

import (
	"sync"
	"time"
)

// Cache holds active criteria lists per (project, ruleset) scope.
type Cache interface {
	// Get returns the cached list for a scope, or false on a miss or expiry
	Get(projectID, rulesetID string) ([]*Criterion, bool)

	// Generation identifies the current contents; Invalidate advances it
	Generation() uint64

	// Set stores the list for a scope if the cache is still at generation,
	// so a list read before an invalidation is never stored after it
	Set(projectID, rulesetID string, generation uint64, criteria []*Criterion)

	// Invalidate drops every scope, forcing a reload on next Get
	Invalidate()
}

// CacheConfig holds configuration for cache behaviour.
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration
}

// DefaultCacheConfig invalidates on mutation only.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

type scopeKey struct {
	projectID string
	rulesetID string
}

type cacheEntry struct {
	criteria []*Criterion
	cachedAt time.Time
}

// InMemoryCache is a Cache backed by a map. Safe for concurrent use.
type InMemoryCache struct {
	entries    map[scopeKey]cacheEntry
	generation uint64
	config     CacheConfig
	now        func() time.Time
	mu         sync.RWMutex
}

// NewInMemoryCache creates an empty cache.
func NewInMemoryCache(config CacheConfig) *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[scopeKey]cacheEntry),
		config:  config,
		now:     time.Now,
	}
}

// Get returns a copy of the cached list.
func (c *InMemoryCache) Get(projectID, rulesetID string) ([]*Criterion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[scopeKey{projectID, rulesetID}]
	if !ok {
		return nil, false
	}
	if c.config.TTL > 0 && c.now().Sub(e.cachedAt) > c.config.TTL {
		return nil, false
	}

	out := make([]*Criterion, len(e.criteria))
	copy(out, e.criteria)
	return out, true
}

// Generation returns the current generation.
func (c *InMemoryCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Set stores a copy of the list. Stale generations are dropped.
func (c *InMemoryCache) Set(projectID, rulesetID string, generation uint64, criteria []*Criterion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}

	stored := make([]*Criterion, len(criteria))
	copy(stored, criteria)
	c.entries[scopeKey{projectID, rulesetID}] = cacheEntry{criteria: stored, cachedAt: c.now()}
}

// Invalidate clears all scopes.
func (c *InMemoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[scopeKey]cacheEntry)
	c.generation++
}
