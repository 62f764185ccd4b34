// Package cache provides a small in-memory cache with per-entry expiry. The
// web layer uses it to memoize dashboard queries between syncs, so page
// loads do not re-run aggregate queries more than once per TTL window.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache memoizes values by key for a fixed TTL. The zero value is not
// usable; construct with New.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[K]entry[V]
}

// New creates a Cache whose entries expire ttl after being filled.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:     ttl,
		now:     time.Now,
		entries: map[K]entry[V]{},
	}
}

// GetOrFill returns the cached value for key, calling fill to compute and
// store it if the key is absent or expired. A fill error is returned
// without caching, so the next call retries.
func (c *Cache[K, V]) GetOrFill(key K, fill func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && c.now().Before(e.expires) {
		return e.value, nil
	}

	value, err := fill()
	if err != nil {
		var zero V
		return zero, err
	}
	c.entries[key] = entry[V]{value: value, expires: c.now().Add(c.ttl)}
	return value, nil
}

// Invalidate drops every entry, forcing refills. Called after a sync so the
// dashboard reflects new data immediately.
func (c *Cache[K, V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
