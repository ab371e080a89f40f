package resolver

import (
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"strmatch/pkg/domain"
)

// DefaultCacheSize is the initial capacity when none is configured. Stores
// grow the cache to the catalog size on import with Reserve.
const DefaultCacheSize = 4096

// Cache memoizes Resolve per accession. Cached profiles are shared between
// callers and must be treated as read-only; callers deep-copy before scoring.
type Cache struct {
	entries *lru.Cache[string, []domain.Profile]
	mu      sync.Mutex
	size    int
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewCache returns a cache holding at most size records (DefaultCacheSize when size <= 0).
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, []domain.Profile](size)
	if err != nil {
		return nil, fmt.Errorf("resolver cache: %w", err)
	}
	return &Cache{entries: entries, size: size}, nil
}

// Reserve grows the cache to hold at least n records. A sequential scan over
// more records than the capacity evicts each entry before it is reused.
func (c *Cache) Reserve(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= c.size {
		return
	}
	c.entries.Resize(n)
	c.size = n
}

// Cap returns the number of records the cache can hold.
func (c *Cache) Cap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Profiles returns the candidate profiles of rec, resolving on first use.
func (c *Cache) Profiles(rec domain.ReferenceRecord) []domain.Profile {
	if profiles, ok := c.entries.Get(rec.Accession); ok {
		c.hits.Add(1)
		return profiles
	}
	c.misses.Add(1)
	profiles := Resolve(rec)
	c.entries.Add(rec.Accession, profiles)
	return profiles
}

// CellLine returns rec's identity with its memoized candidate profiles. The
// profiles slice is shared with the cache.
func (c *Cache) CellLine(rec domain.ReferenceRecord) domain.CellLine {
	cl := rec.Identity()
	cl.Profiles = c.Profiles(rec)
	return cl
}

// Purge drops every memoized record. Stores call it when the catalog is replaced.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Len returns the number of memoized records.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
