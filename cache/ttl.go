// Package cache holds the in-memory TTL map, the result stores and the
// fingerprint cache that deduplicates concurrent pipeline runs.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a thread-safe in-memory map whose entries expire.
// Expired entries are dropped lazily on read and in sweeps triggered by writes.
type TTL[V any] struct {
	mu          sync.Mutex
	entries     map[string]entry[V]
	ttl         time.Duration
	now         func() time.Time
	lastCleanup time.Time
}

// NewTTL creates a cache whose entries live for ttl by default
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return NewTTLWithClock[V](ttl, time.Now)
}

// NewTTLWithClock is NewTTL with an injected clock
func NewTTLWithClock[V any](ttl time.Duration, now func() time.Time) *TTL[V] {
	return &TTL[V]{
		entries:     make(map[string]entry[V]),
		ttl:         ttl,
		now:         now,
		lastCleanup: now(),
	}
}

// Get returns the value for key if present and not expired
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value with the default TTL
func (c *TTL[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value with a specific TTL
func (c *TTL[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(ttl)}
	if now.Sub(c.lastCleanup) >= c.ttl {
		c.cleanupLocked(now)
	}
}

// DeleteFunc removes every live key for which match returns true and reports how many
func (c *TTL[V]) DeleteFunc(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.cleanupLocked(now)
	removed := 0
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *TTL[V]) cleanupLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.lastCleanup = now
}

// Len returns the number of stored entries, expired or not
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
