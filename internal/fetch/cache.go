package fetch

import (
	"sync"
	"time"
)

// pruneThreshold is the cache size above which a write sweeps out entries
// older than twice the TTL.
const pruneThreshold = 100

type entry struct {
	value    any
	storedAt time.Time
}

// Cache is a keyed TTL cache for upstream payloads. Get returns only fresh
// entries; GetStale also returns expired ones so callers can serve stale
// data when the upstream is down. Concurrent misses on the same key will
// each hit the upstream; there is no request coalescing.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

// NewCache builds a cache whose entries stay fresh for ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the value for key if it is still fresh.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

// GetStale returns the value for key regardless of age. The second result
// reports presence, the third whether the entry has outlived its TTL.
func (c *Cache) GetStale(key string) (any, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	return e.value, true, c.now().Sub(e.storedAt) >= c.ttl
}

// Set stores value under key, stamping it with the current time. Once the
// cache grows past pruneThreshold, each write also drops entries older
// than twice the TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
	if len(c.entries) > pruneThreshold {
		cutoff := c.now().Add(-2 * c.ttl)
		for k, e := range c.entries {
			if e.storedAt.Before(cutoff) {
				delete(c.entries, k)
			}
		}
	}
}

// Len reports the number of entries currently held, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
