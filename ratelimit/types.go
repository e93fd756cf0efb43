package ratelimit

import (
	"context"
	"time"
)

type ProviderType string

const (
	ProviderTypeMemory ProviderType = "memory"
	ProviderTypeRedis  ProviderType = "redis"
)

func (p ProviderType) String() string {
	return string(p)
}

// Result is the outcome of a single sliding-window check.
type Result struct {
	// Allowed indicates whether the request should be allowed
	Allowed bool
	// Remaining is the number of requests left in the current window
	Remaining int
	// ResetAt is when the oldest counted event leaves the window
	ResetAt time.Time
}

// Provider defines the interface for sliding-window rate limit backends.
// The prune-check-insert sequence must be atomic with respect to concurrent
// callers sharing the same key: a burst of N simultaneous calls must never
// allow more than the limit through. Over-blocking under contention is
// acceptable, under-blocking is not.
type Provider interface {
	// GetName returns the name of the provider
	GetName() string
	// CheckAndRecord prunes events older than the window, checks the count
	// against the limit, and records the current event if allowed.
	// key is the fully-qualified key (with prefix already included).
	CheckAndRecord(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	// Close closes any resources held by the provider
	Close() error
}
