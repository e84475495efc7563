package base

import (
	"crypto/sha256"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oxhq/treelens/providers"
)

// DefaultCacheAge is how long a validation result stays valid.
const DefaultCacheAge = 5 * time.Minute

// ValidationCache remembers syntax check results by source content.
type ValidationCache struct {
	entries sync.Map // [sha256.Size]byte -> cachedResult
	hits    atomic.Int64
	misses  atomic.Int64
	evicted atomic.Int64
	maxAge  time.Duration
	now     func() time.Time
}

type cachedResult struct {
	result providers.ValidationResult
	stored time.Time
}

// NewValidationCache creates a cache whose entries expire after maxAge.
func NewValidationCache(maxAge time.Duration) *ValidationCache {
	if maxAge <= 0 {
		maxAge = DefaultCacheAge
	}
	return &ValidationCache{maxAge: maxAge, now: time.Now}
}

// GetOrCompute returns the cached result for source, or stores and returns compute's.
func (c *ValidationCache) GetOrCompute(source []byte, compute func() providers.ValidationResult) providers.ValidationResult {
	key := sha256.Sum256(source)
	now := c.now()

	if v, ok := c.entries.Load(key); ok {
		entry := v.(cachedResult)
		if now.Sub(entry.stored) <= c.maxAge {
			c.hits.Add(1)
			return entry.result
		}
		c.entries.Delete(key)
		c.evicted.Add(1)
	}

	c.misses.Add(1)
	result := compute()
	c.entries.Store(key, cachedResult{result: result, stored: now})
	return result
}

// Prune drops expired entries and returns how many were removed.
func (c *ValidationCache) Prune() int {
	now := c.now()
	removed := 0
	c.entries.Range(func(key, value any) bool {
		if now.Sub(value.(cachedResult).stored) > c.maxAge {
			c.entries.Delete(key)
			removed++
		}
		return true
	})
	c.evicted.Add(int64(removed))
	return removed
}

// Stats returns cache statistics
func (c *ValidationCache) Stats() map[string]int64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	return map[string]int64{
		"hits":      hits,
		"misses":    misses,
		"evictions": c.evicted.Load(),
		"hit_rate":  hits * 100 / (hits + misses + 1),
	}
}
