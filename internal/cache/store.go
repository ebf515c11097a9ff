package cache

import (
	"context"
	"time"
)

// Store represents a shared key-value cache used across the application.
// Values are opaque byte slices; a zero or negative TTL stores the entry
// without expiry.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
