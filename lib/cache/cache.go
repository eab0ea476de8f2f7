// Package cache implements the short-TTL response cache the gateway uses for
// hot read endpoints. Entries are independent and are never invalidated on
// write: balances and NFT listings are read-only views where eventual
// consistency is acceptable.
package cache

import (
	"sync"
	"time"
)

const janitorInterval = 30 * time.Second

type entry struct {
	value   []byte
	expires time.Time
}

// Cache is a concurrency-safe in-process TTL cache.
type Cache struct {
	mu   sync.RWMutex
	m    map[string]entry
	stop chan struct{}
	once sync.Once
}

// New returns a running cache. Close must be called at termination time.
func New() *Cache {
	c := &Cache{
		m:    make(map[string]entry),
		stop: make(chan struct{}),
	}

	go c.janitor()

	return c
}

// Get returns the cached value for key, or false when absent or expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expires) {
		return nil, false
	}

	return e.value, true
}

// Set stores value under key for the given TTL.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	c.m[key] = entry{value: value, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Close stops the janitor goroutine.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// janitor drops expired entries so the map does not grow without bound.
func (c *Cache) janitor() {
	t := time.NewTicker(janitorInterval)
	defer t.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-t.C:
			c.mu.Lock()
			for k, e := range c.m {
				if now.After(e.expires) {
					delete(c.m, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
