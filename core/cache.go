package core

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// Cache is any service that can store transient byte payloads with a TTL.
// It is best-effort: callers must treat every failure as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
