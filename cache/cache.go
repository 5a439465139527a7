// Package cache provides fail-open translation cache stores.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is the expiry applied when a caller passes a non-positive TTL (7 days).
const DefaultTTL = 604800 * time.Second

// Store is the interface for translation caching.
type Store interface {
	// Get retrieves a cached translation. Any failure is reported as a miss.
	Get(ctx context.Context, key string) (string, bool)

	// Set stores a translation for ttl. Failures are logged and dropped.
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// Entry is a cached value with its remaining lifetime.
type Entry struct {
	Key   string
	Value string
	TTL   time.Duration
}

// Enumerable is implemented by stores whose contents can be listed for export.
type Enumerable interface {
	// Entries calls fn for every live entry whose key matches the glob
	// pattern match. Unlike Get, errors are returned.
	Entries(ctx context.Context, match string, fn func(Entry) error) error
}

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
