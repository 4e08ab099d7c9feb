package l1_service

import (
	"sync"
	"time"

	"sectorscan/internal/util"
)

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
	exp      time.Time
}

// TTLCache is a lock-guarded map whose entries expire ttl after insertion.
// A zero ttl never expires. When full, the oldest entry is evicted.
type TTLCache[K comparable, V any] struct {
	mu       sync.RWMutex
	m        map[K]cacheEntry[V]
	clock    util.Clock
	ttl      time.Duration
	capacity int
}

func NewTTLCache[K comparable, V any](clock util.Clock, ttl time.Duration, capacity int) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		m:        make(map[K]cacheEntry[V]),
		clock:    clock,
		ttl:      ttl,
		capacity: capacity,
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !e.exp.IsZero() && !c.clock.Now().Before(e.exp) {
		c.mu.Lock()
		// re-check: a writer may have refreshed the key in between
		if cur, ok := c.m[key]; ok && cur.storedAt.Equal(e.storedAt) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V) {
	now := c.clock.Now()
	var exp time.Time
	if c.ttl > 0 {
		exp = now.Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[key]; !exists && c.capacity > 0 && len(c.m) >= c.capacity {
		c.evictLocked(now)
	}
	c.m[key] = cacheEntry[V]{value: value, storedAt: now, exp: exp}
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// evictLocked drops expired entries, or the oldest one if none expired.
func (c *TTLCache[K, V]) evictLocked(now time.Time) {
	var (
		oldestKey K
		oldestAt  time.Time
		found     bool
		expired   bool
	)
	for k, e := range c.m {
		if !e.exp.IsZero() && !now.Before(e.exp) {
			delete(c.m, k)
			expired = true
			continue
		}
		if !found || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.storedAt, true
		}
	}
	if !expired && found {
		delete(c.m, oldestKey)
	}
}
