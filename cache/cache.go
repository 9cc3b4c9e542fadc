// Package cache is a small generic memoization cache with optional expiry.
package cache

import (
	"sync"
	"time"
)

type cacheItem[V any] struct {
	value     V
	expiresAt int64 // UnixNano, 0 means no expiration
}

func (item *cacheItem[V]) expired(now int64) bool {
	return item.expiresAt != 0 && now > item.expiresAt
}

// Cache is a thread-safe, generic cache with TTL support.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	items      map[K]*cacheItem[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// Option is a functional option type for Cache configuration.
type Option[K comparable, V any] func(*Cache[K, V])

// WithDefaultTTL sets the TTL used by Set and GetOrLoad. Zero disables expiry.
func WithDefaultTTL[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.defaultTTL = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.now = now
	}
}

func NewCache[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		items: make(map[K]*cacheItem[V]),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache[K, V]) Set(k K, v V) {
	c.SetWithTTL(k, v, c.defaultTTL)
}

// SetWithTTL stores v. A zero ttl never expires, a negative ttl deletes k.
func (c *Cache[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(k, v, ttl)
}

func (c *Cache[K, V]) setLocked(k K, v V, ttl time.Duration) {
	if ttl < 0 {
		delete(c.items, k)
		return
	}
	item := &cacheItem[V]{value: v}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl).UnixNano()
	}
	c.items[k] = item
}

// Get returns the value for k if present and not expired.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(k)
}

func (c *Cache[K, V]) getLocked(k K) (V, bool) {
	var zero V
	item, ok := c.items[k]
	if !ok {
		return zero, false
	}
	if item.expired(c.now().UnixNano()) {
		delete(c.items, k)
		return zero, false
	}
	return item.value, true
}

// GetOrLoad returns the cached value for k, calling load on a miss. Errors
// are not cached. Loads run under the cache lock.
func (c *Cache[K, V]) GetOrLoad(k K, load func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.getLocked(k); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.setLocked(k, v, c.defaultTTL)
	return v, nil
}

func (c *Cache[K, V]) Delete(k K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, k)
}

// Clean removes all items.
func (c *Cache[K, V]) Clean() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*cacheItem[V])
}

// Len counts stored items, including expired ones not yet collected.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
