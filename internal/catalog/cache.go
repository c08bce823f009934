package catalog

import (
	"sort"
	"sync"
)

// cacheEntry is one endpoint's live session and the tools built from it.
type cacheEntry struct {
	label   string
	session Session
	tools   []*Tool
}

// Cache holds materialized tool sets keyed by endpoint URL. Only
// endpoints that materialized successfully are stored. It is safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

func (c *Cache) get(url string) (*cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	return e, ok
}

func (c *Cache) put(url string, e *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = e
}

// Forget drops the entry for url so the next materialization performs a
// fresh handshake. It reports whether an entry was present.
func (c *Cache) Forget(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[url]
	delete(c.entries, url)
	return ok
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of cached endpoints.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Endpoints returns the cached endpoint URLs, sorted.
func (c *Cache) Endpoints() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for u := range c.entries {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
