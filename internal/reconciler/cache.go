package reconciler

import (
	"context"
	"sync"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// MemoryCache is an in-process ports.RateCache. Readers never observe a
// partially written entry.
type MemoryCache struct {
	mu    sync.RWMutex
	rates map[string]ports.CachedRate
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{rates: make(map[string]ports.CachedRate)}
}

func (c *MemoryCache) Get(ctx context.Context, from, to string) (ports.CachedRate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rates[pairKey(from, to)]
	return r, ok
}

func (c *MemoryCache) Put(ctx context.Context, from, to string, rate ports.CachedRate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[pairKey(from, to)] = rate
	return nil
}

// Len returns the number of cached pairs.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rates)
}

func pairKey(from, to string) string {
	return from + "/" + to
}

var _ ports.RateCache = (*MemoryCache)(nil)
