package cache

import "errors"

var (
	// ErrCacheMiss is returned when a key is absent. Callers treat backend
	// failures the same way: degrade to the storage lookup.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidCacheKey is returned for empty keys.
	ErrInvalidCacheKey = errors.New("invalid cache key")
)

// CacheError carries the failing operation and key alongside the cause.
type CacheError struct {
	Op  string // "get", "set", "expire"
	Key string
	Err error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return "cache " + e.Op + " '" + e.Key + "': " + e.Err.Error()
	}
	return "cache " + e.Op + ": " + e.Err.Error()
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func NewCacheError(op, key string, err error) error {
	return &CacheError{
		Op:  op,
		Key: key,
		Err: err,
	}
}
