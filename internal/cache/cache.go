package cache

import (
	"context"
	"errors"
	"time"
)

// Store is a TTL-capable byte cache. Every call may fail independently;
// callers decide whether a failure matters.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

var ErrCacheMiss = errors.New("cache miss")
