// Package app wires the plans domain to its infrastructure: the persisted
// store adapter, the read-through cache, the subscription broker, the
// offline operation queue, and the connectivity tracker.
package app

import (
	"sync"
	"time"
)

// Cache TTLs. Single records stay fresh longer than list snapshots because
// lists change whenever any member record does.
const (
	RecordTTL = 2 * time.Minute
	ListTTL   = time.Minute
)

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a small in-memory TTL cache. Expired entries are dropped lazily
// on read. The zero value is not usable; construct with NewCache.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]cacheEntry[V]
	ttl     time.Duration
	clock   func() time.Time
}

// NewCache constructs a cache whose entries expire after ttl.
func NewCache[V any](ttl time.Duration, clock func() time.Time) *Cache[V] {
	if clock == nil {
		clock = time.Now
	}
	return &Cache[V]{
		entries: make(map[string]cacheEntry[V]),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached value for key if it is present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.clock().After(entry.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key until the TTL elapses.
func (c *Cache[V]) Set(key string, value V) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: c.clock().Add(c.ttl)}
}

// Delete drops one key.
func (c *Cache[V]) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
