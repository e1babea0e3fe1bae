package dashboard

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ResultCache memoizes expensive aggregate computations by
// canonical string key with a per-entry TTL. Expiry is lazy
// (checked on read) with a background janitor sweeping stale
// entries. Concurrent misses for the same key may each run the
// compute function; the duplicated work is accepted rather than
// serialized.
type ResultCache struct {
	entries *gocache.Cache
}

// NewResultCache creates an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{
		entries: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

// Flush drops all entries. Used by tests.
func (rc *ResultCache) Flush() {
	rc.entries.Flush()
}

// Fetch returns the cached value for key if a fresh entry exists,
// otherwise runs compute, stores its result for ttl, and returns
// it. Compute errors are returned as-is and never cached, so the
// next caller retries.
func Fetch[T any](
	rc *ResultCache, key string, ttl time.Duration,
	compute func() (T, error),
) (T, error) {
	if v, ok := rc.entries.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	rc.entries.Set(key, v, ttl)
	return v, nil
}
