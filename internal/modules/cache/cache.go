// Package cache bounds the staleness window of module resolution. Entries
// carry a short TTL so a rename or install propagates within the documented
// bound; writes through the module service invalidate eagerly.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL'd key-value store for resolver lookups. Implementations are
// best-effort: a miss or an error just falls through to the module store.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
}
