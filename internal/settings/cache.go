package settings

import (
	"sync"
	"time"
)

// Cache holds resolved setting values for a bounded time
type Cache interface {
	Get(key Key) (any, bool)
	Set(key Key, value any)
	IsExpired(key Key) bool
}

// MemoryCache is a process-local cache with a fixed TTL per entry
type MemoryCache struct {
	data map[Key]*cacheEntry
	ttl  time.Duration
	now  func() time.Time
	mu   sync.RWMutex
}

// cacheEntry represents a cache entry with expiration
type cacheEntry struct {
	value      any
	expiration time.Time
}

// MemoryCacheOption configures a MemoryCache
type MemoryCacheOption func(*MemoryCache)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// NewMemoryCache creates a new cache where every entry lives for ttl
func NewMemoryCache(ttl time.Duration, opts ...MemoryCacheOption) *MemoryCache {
	c := &MemoryCache{
		data: make(map[Key]*cacheEntry),
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewCache returns a MemoryCache with ttl, or a NoopCache when caching is
// disabled so every lookup reaches the store
func NewCache(enabled bool, ttl time.Duration) Cache {
	if !enabled {
		return NoopCache{}
	}
	return NewMemoryCache(ttl)
}

// Get retrieves a non-expired value. Expired entries are removed.
func (c *MemoryCache) Get(key Key) (any, bool) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !c.now().Before(entry.expiration) {
		c.mu.Lock()
		if cur, ok := c.data[key]; ok && cur == entry {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return entry.value, true
}

// Set stores a value in the cache
func (c *MemoryCache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
}

// IsExpired reports whether key is missing or past its expiry
func (c *MemoryCache) IsExpired(key Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok {
		return true
	}
	return !c.now().Before(entry.expiration)
}

// Size returns the number of entries in the cache, expired ones included
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) Get(Key) (any, bool) { return nil, false }

func (NoopCache) Set(Key, any) {}

func (NoopCache) IsExpired(Key) bool { return true }
