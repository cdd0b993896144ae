// Package cache provides a small cache-aside layer over a remote key/value
// store. Values are stored as JSON under plain string keys with a TTL.
//
// When no store is configured the layer passes every call straight through
// to the fetch function, so callers never branch on cache availability.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Store.Get when the key does not exist.
var ErrMiss = errors.New("cache: miss")

// Store is the remote side of the cache. Get returns ErrMiss for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}
