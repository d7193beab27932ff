// Package legacycache reads the pre-registry local cache of participants.
package legacycache

import (
	"context"
	"fmt"
	"os"

	gocache "github.com/patrickmn/go-cache"

	"lerngruppe/internal/ports/output"
)

var _ output.LegacyCache = (*MemoryCache)(nil)

// MemoryCache is a process-local, non-durable cache. Entries never expire.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cache: gocache.New(gocache.NoExpiration, 0)}
}

// NewMemoryCacheFromFile seeds the cache with the content of a JSON export
// stored under key. A missing file yields an empty cache.
func NewMemoryCacheFromFile(path, key string) (*MemoryCache, error) {
	c := NewMemoryCache()
	b, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied export path
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy export: %w", err)
	}
	c.Set(key, string(b))
	return c, nil
}

// Set stores value at key.
func (c *MemoryCache) Set(key, value string) {
	c.cache.Set(key, value, gocache.NoExpiration)
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.cache.Get(key)
	if !ok {
		return "", output.ErrCacheMiss
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("legacy cache: value at %q is %T, not a string", key, v)
	}
	return s, nil
}
