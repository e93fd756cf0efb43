package models

import (
	"context"
	"time"
)

type ExpiringStoreType string

const (
	ExpiringStoreTypeMemory ExpiringStoreType = "memory"
	ExpiringStoreTypeRedis  ExpiringStoreType = "redis"
	ExpiringStoreTypeCustom ExpiringStoreType = "custom"
)

func (t ExpiringStoreType) String() string {
	return string(t)
}

// ExpiringStore defines an interface over a TTL-capable keyed store.
// An entry whose TTL has elapsed must behave as absent on every operation,
// regardless of when the backend physically removes it.
type ExpiringStore interface {
	// Get retrieves the value associated with the given key.
	// Returns nil if the key does not exist or has expired.
	Get(ctx context.Context, key string) (any, error)
	// Set stores a value with an optional time-to-live (TTL).
	Set(ctx context.Context, key string, value any, ttl *time.Duration) error
	// Delete removes the value associated with the given key.
	Delete(ctx context.Context, key string) error
	// Keys returns all live keys matching the given prefix.
	// Used by bulk-invalidation scans; not suitable for hot paths.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Incr increments an integer value associated with the given key.
	Incr(ctx context.Context, key string, ttl *time.Duration) (int, error)
	// TTL retrieves the remaining time-to-live for the given key.
	TTL(ctx context.Context, key string) (*time.Duration, error)
	// Close closes the store and releases any resources.
	Close() error
}
