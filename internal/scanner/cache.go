// Package scanner implements the Endpoint Scanner from spec.md §4.6,
// grounded on the teacher's internal/dpi/probe.go (NIC-bound TCP dial +
// TLS-spoof probe shape) and internal/dpi/cache.go (process-lifetime
// result cache, simplified here since spec.md only calls for an in-memory
// cache: "Results are cached by IP for the lifetime of the process").
package scanner

import (
	"sync"

	"duskline/internal/core"
)

// Cache stores scan results by IP for the lifetime of the process.
type Cache struct {
	mu      sync.RWMutex
	results map[string]core.Endpoint
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{results: make(map[string]core.Endpoint)}
}

// Get returns the cached endpoint for ip, if present.
func (c *Cache) Get(ip string) (core.Endpoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.results[ip]
	return e, ok
}

// Put stores an endpoint result keyed by its IP.
func (c *Cache) Put(ip string, e core.Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[ip] = e
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
