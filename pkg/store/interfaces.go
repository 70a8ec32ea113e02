package store

import (
	"context"
	"time"
)

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCacheWithTime(ctx context.Context, key string) ([]byte, time.Time, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
