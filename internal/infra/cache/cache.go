// Package cache provides the result cache implementations: a thread-safe
// in-memory store with per-entry TTL, and a Redis-backed adapter for
// multi-replica deployments. Both satisfy port.Cache and neither is a source
// of truth: every cached result is re-derivable from the profile store.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe in-memory cache with per-entry TTL.
type InMemory[T any] struct {
	mu      sync.RWMutex
	items   map[string]entry[T]
	sweep   time.Duration
	closeCh chan struct{}
	once    sync.Once
}

// NewInMemory creates an in-memory cache. sweepInterval controls how often
// expired entries are physically removed; reads never return expired values
// regardless.
func NewInMemory[T any](sweepInterval time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		items:   make(map[string]entry[T]),
		sweep:   sweepInterval,
		closeCh: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get retrieves a value. Returns false if not found or expired.
func (c *InMemory[T]) Get(_ context.Context, key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the given TTL. Re-setting an existing key is
// always safe (last write wins).
func (c *InMemory[T]) Set(_ context.Context, key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Close stops the background sweeper.
func (c *InMemory[T]) Close() {
	c.once.Do(func() { close(c.closeCh) })
}

// cleanup periodically removes expired entries.
func (c *InMemory[T]) cleanup() {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for k, v := range c.items {
				if now.After(v.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
