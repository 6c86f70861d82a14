package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	value     V
	expiresAt time.Time // zero value = never expires
}

func (e memoryEntry[V]) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// Memory is an in-memory Cache with lazy expiration: entries are checked on
// read and dropped when stale. There is no background janitor; the working
// set here (one signed URL per recently downloaded attachment) is small
// enough that lazy cleanup suffices.
type Memory[V any] struct {
	mu    sync.Mutex
	items map[string]memoryEntry[V]
}

// NewMemory creates an empty in-memory cache.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{items: make(map[string]memoryEntry[V])}
}

// Get retrieves a value by key, or ErrNotFound when absent or expired.
func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok || e.expired() {
		delete(m.items, key)
		var zero V
		return zero, ErrNotFound
	}
	return e.value, nil
}

// Set stores a value that expires after ttl (non-positive = never).
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	e := memoryEntry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
	return nil
}

// Delete removes a key.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

var _ Cache[string] = (*Memory[string])(nil)
