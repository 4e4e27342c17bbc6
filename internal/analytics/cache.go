package analytics

import (
	"sync"
	"time"
)

// queryCache caches query reports by their full query key with a fixed TTL.
// Entries are invalidated only by expiry, never by new events: a cached
// report can be up to one TTL stale. That trade-off keeps the hot recording
// path free of cache bookkeeping.
type queryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	report  *Report
	expires time.Time
}

func newQueryCache(ttl time.Duration) *queryCache {
	return &queryCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

// get returns a cached report if present and unexpired
func (c *queryCache) get(key string) (*Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.report, true
}

// put stores a report under the query key
func (c *queryCache) put(key string, r *Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{report: r, expires: time.Now().Add(c.ttl)}
}

// sweep drops expired entries; returns the number removed
func (c *queryCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
