// Package cache provides the read-through caches kept in front of the
// shipment store. Every implementation is best-effort: failures are logged
// and surface as misses, never as errors.
package cache

import (
	"context"
	"time"
)

type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	// Set stores value for ttl; a non-positive ttl keeps it until evicted.
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, key K)
}
