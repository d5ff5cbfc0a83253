package geospatial

import (
	"sync"
	"sync/atomic"
)

// GeocodeCache memoizes geocoder answers for the lifetime of the process.
// City names have small cardinality, so entries never expire.
type GeocodeCache struct {
	data   map[string]cacheEntry
	mu     sync.RWMutex
	hits   atomic.Int64
	misses atomic.Int64
}

// cacheEntry records a lookup, including lookups that found nothing
type cacheEntry struct {
	point GeoPoint
	found bool
}

// NewGeocodeCache creates an empty cache
func NewGeocodeCache() *GeocodeCache {
	return &GeocodeCache{
		data: make(map[string]cacheEntry),
	}
}

// Get returns the memoized answer and whether the key was seen before
func (c *GeocodeCache) Get(key string) (point GeoPoint, found bool, cached bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok {
		c.misses.Add(1)
		return GeoPoint{}, false, false
	}
	c.hits.Add(1)
	return entry.point, entry.found, true
}

// Set stores a positive answer
func (c *GeocodeCache) Set(key string, point GeoPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{point: point, found: true}
}

// SetMissing stores a negative answer so the geocoder is not asked again
func (c *GeocodeCache) SetMissing(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{}
}

// Size returns the number of entries in the cache
func (c *GeocodeCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Stats returns cache statistics
func (c *GeocodeCache) Stats() CacheStats {
	return CacheStats{
		Size:   c.Size(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}
