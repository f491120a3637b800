package statistics

import (
	"sync"
	"time"

	"libraryapi/internal/platform/clock"
)

type cacheEntry struct {
	report    Report
	expiresAt time.Time
}

// Cache holds finished reports per period until their TTL passes. Expired
// entries are never served and are swept by a background loop.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]cacheEntry
	ttl      time.Duration
	now      clock.Clock
	done     chan struct{}
	stopOnce sync.Once
}

// NewCache starts the sweep loop when sweepEvery is positive.
func NewCache(ttl, sweepEvery time.Duration, now clock.Clock) *Cache {
	if now == nil {
		now = clock.Now
	}
	c := &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
		done:    make(chan struct{}),
	}
	if sweepEvery > 0 {
		go c.sweepLoop(sweepEvery)
	}
	return c
}

func (c *Cache) Get(key string) (Report, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return Report{}, false
	}
	return e.report, true
}

func (c *Cache) Set(key string, r Report) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{report: r, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

func (c *Cache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Close stops the sweep loop. It is safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.done) })
}
