package cache

import (
	"context"
	"time"
)

// Cache is the redirect fast path: short code -> long URL with expiration.
// Absence (ErrCacheMiss) is never authoritative; callers fall back to storage.
type Cache interface {
	GetString(ctx context.Context, key string) (string, error)
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	// RefreshExpiry extends the lifetime of an existing entry without touching
	// its value. Used on cache hits for sliding-window retention.
	RefreshExpiry(ctx context.Context, key string, ttl time.Duration) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// RateLimiter counts requests per key within a rolling window.
type RateLimiter interface {
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// NullCache serves when no cache backend is configured: every read is a miss,
// every write succeeds silently.
type NullCache struct{}

func NewNullCache() *NullCache {
	return &NullCache{}
}

func (n *NullCache) GetString(ctx context.Context, key string) (string, error) {
	return "", ErrCacheMiss
}

func (n *NullCache) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}

func (n *NullCache) RefreshExpiry(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (n *NullCache) HealthCheck(ctx context.Context) error {
	return nil
}

func (n *NullCache) Close() error {
	return nil
}
