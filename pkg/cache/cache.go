// Package cache provides a small TTL key-value cache with in-memory and
// Redis backends. The service uses it to cache signed download URLs.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("cache: key not found")

	ErrMarshal   = errors.New("cache: failed to marshal value")
	ErrUnmarshal = errors.New("cache: failed to unmarshal value")
)

// Cache is a key-value cache with per-entry TTLs.
type Cache[V any] interface {
	// Get retrieves a value by key, or ErrNotFound.
	Get(ctx context.Context, key string) (V, error)

	// Set stores a value that expires after ttl. A non-positive ttl stores
	// the value without expiration.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

var sfGroup singleflight.Group

type computed[V any] struct {
	val V
	ttl time.Duration
}

// GetOrSet returns the cached value for key, or calls fn to compute and cache
// it on a miss. Concurrent misses for the same key are collapsed with
// singleflight so fn runs once. The callback returns the value and the TTL to
// cache it under; errors from fn are returned uncached.
func GetOrSet[V any](ctx context.Context, c Cache[V], key string, fn func(ctx context.Context) (V, time.Duration, error)) (V, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	v, err, _ := sfGroup.Do(key, func() (any, error) {
		val, ttl, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return computed[V]{val: val, ttl: ttl}, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	r := v.(computed[V])

	// Caching is best effort; a failed Set just means the next call
	// recomputes.
	_ = c.Set(ctx, key, r.val, r.ttl)

	return r.val, nil
}
