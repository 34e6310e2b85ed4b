package client

import (
	"sync"
	"sync/atomic"
	"time"
)

// validationCache remembers fingerprints of queries the server has already
// accepted, with FIFO eviction. A disabled cache (size <= 0) misses on every
// lookup so callers need no nil checks.
type validationCache struct {
	mu      sync.Mutex
	entries map[uint64]time.Time
	order   []uint64
	maxSize int
	ttl     time.Duration

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func newValidationCache(maxSize int, ttl time.Duration) *validationCache {
	return &validationCache{
		entries: make(map[uint64]time.Time),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// seen reports whether the fingerprint is cached and still fresh.
func (c *validationCache) seen(key uint64) bool {
	if c.maxSize <= 0 {
		c.misses.Add(1)
		return false
	}

	c.mu.Lock()
	validatedAt, ok := c.entries[key]
	if ok && c.ttl > 0 && time.Since(validatedAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		ok = false
	}
	c.mu.Unlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return ok
}

// add records a fingerprint, evicting the oldest entry when full.
func (c *validationCache) add(key uint64) {
	if c.maxSize <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = time.Now()
		return
	}

	if len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.evictions.Add(1)
	}

	c.entries[key] = time.Now()
	c.order = append(c.order, key)
}

func (c *validationCache) snapshot() CacheStats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()

	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
	}
}

// removeFromOrder removes a key from the eviction order. Must be called with
// c.mu locked.
func (c *validationCache) removeFromOrder(key uint64) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
