// Package cache provides the short-lived result cache and its relationship
// aware invalidation bus.
//
// Entries carry their own TTL and expire lazily on read; every Set also
// sweeps expired entries so growth stays bounded between reads. There is no
// LRU or size-bounded eviction: capacity is bounded only by TTL expiry and
// sweep frequency.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// TTL tiers for cached dashboard data
const (
	TTLShort  = 30 * time.Second   // volatile compliance data
	TTLMedium = 5 * time.Minute    // pilot profiles
	TTLLong   = time.Hour          // fleet rosters
	TTLStatic = 24 * time.Hour     // check-type reference data
)

type entry struct {
	data      any
	writtenAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.writtenAt) >= e.ttl
}

// Cache is an in-memory TTL cache keyed by opaque strings
type Cache struct {
	entries map[string]entry
	hits    atomic.Uint64
	misses  atomic.Uint64
	logger  zerolog.Logger
	mu      sync.RWMutex
	now     func() time.Time
}

// New creates an empty Cache
func New(logger zerolog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		logger:  logger.With().Str("component", "cache").Logger(),
		now:     time.Now,
	}
}

// Get retrieves a value. An entry whose TTL has elapsed is treated as absent
// and removed on the spot.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if e.expired(c.now()) {
		c.mu.Lock()
		// Recheck under the write lock; a Set may have raced us.
		if cur, ok := c.entries[key]; ok && cur.expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.data, true
}

// Set stores a value with the given TTL and sweeps expired entries
func (c *Cache) Set(key string, data any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	c.entries[key] = entry{data: data, writtenAt: c.now(), ttl: ttl}
}

// sweepLocked removes every expired entry. Keys are collected before any
// deletion so the map is never mutated mid-iteration.
func (c *Cache) sweepLocked() {
	now := c.now()

	var expired []string
	for key, e := range c.entries {
		if e.expired(now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		delete(c.entries, key)
	}

	if len(expired) > 0 {
		c.logger.Debug().Int("removed", len(expired)).Msg("swept expired entries")
	}
}

// Invalidate removes a single entry. Removing an absent key is a no-op.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidatePrefix removes every entry whose key starts with prefix
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stale []string
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		delete(c.entries, key)
	}
	return len(stale)
}

// Size returns the number of entries currently held, expired or not
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup
func (c *Cache) HitRatio() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Counters returns the raw hit and miss counts
func (c *Cache) Counters() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
