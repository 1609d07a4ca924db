// Package cache implements C2: a TTL-bounded cache for query results and
// intermediate retrieval state, with single-flight collapsing of
// concurrent misses for the same key. Backends are pluggable between an
// in-memory LRU and Redis (client wiring and SCAN+DEL prefix invalidation).
package cache

import (
	"context"
	"time"
)

// Cache is the pluggable backend contract for C2.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// InvalidatePrefix removes all keys sharing the given prefix, used
	// when a corpus-version bump makes a family of cached query results
	// stale (§4.6's invalidation contract).
	InvalidatePrefix(ctx context.Context, prefix string) error
	// GetOrLoad fetches key, or calls load and caches its result on miss,
	// collapsing concurrent callers for the same key into one load
	// (§4.8's single-flight requirement for duplicate in-flight queries).
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) ([]byte, error)) ([]byte, error)
	Close() error
}
