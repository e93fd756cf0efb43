package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// storeEntry represents a single entry in the memory store with expiration support.
type storeEntry struct {
	value     string
	expiresAt *time.Time
}

// MemoryStorageConfig contains configuration for the in-memory store.
type MemoryStorageConfig struct {
	// CleanupInterval controls how often expired entries are swept.
	CleanupInterval time.Duration
}

// MemoryExpiringStore is the in-process fallback implementation of
// ExpiringStore. Expiry is enforced by comparing expiresAt against the wall
// clock on every access; a periodic sweep bounds memory growth. It is
// process-local: in a multi-process deployment its contents are not shared.
type MemoryExpiringStore struct {
	mu    sync.RWMutex
	store map[string]*storeEntry
	// cleanupInterval controls how often expired entries are cleaned up.
	cleanupInterval time.Duration
	// stopCleanup is used to signal the cleanup goroutine to stop.
	stopCleanup chan struct{}
	// done signals that the cleanup goroutine has stopped.
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryExpiringStore(config MemoryStorageConfig) *MemoryExpiringStore {
	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryExpiringStore{
		store:           make(map[string]*storeEntry),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		done:            make(chan struct{}),
	}

	go store.cleanupExpiredEntries()

	return store
}

// Get retrieves a value from memory by key.
// Returns nil if the key does not exist or has expired.
func (s *MemoryExpiringStore) Get(ctx context.Context, key string) (any, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.store[key]
	if !exists {
		return nil, nil
	}

	if entry.expiresAt != nil && time.Now().After(*entry.expiresAt) {
		return nil, nil
	}

	return entry.value, nil
}

// Set stores a value in memory with an optional TTL.
// The value must be a string. If ttl is nil, the entry will not expire.
func (s *MemoryExpiringStore) Set(ctx context.Context, key string, value any, ttl *time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	valueStr, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w, got %T", ErrValueNotString, value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &storeEntry{
		value: valueStr,
	}

	if ttl != nil {
		expiresAt := time.Now().Add(*ttl)
		entry.expiresAt = &expiresAt
	}

	s.store[key] = entry

	return nil
}

// Delete removes a key from the store. Deleting a missing key is a no-op so
// concurrent revocations converge to the same end state.
func (s *MemoryExpiringStore) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.store, key)

	return nil
}

// Keys returns all live keys with the given prefix.
func (s *MemoryExpiringStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var keys []string
	for key, entry := range s.store {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if entry.expiresAt != nil && now.After(*entry.expiresAt) {
			continue
		}
		keys = append(keys, key)
	}

	return keys, nil
}

// Incr increments the integer value stored at key by 1.
// If the key does not exist or has expired, it restarts from zero.
// If ttl is provided, it is set or updated on the key.
func (s *MemoryExpiringStore) Incr(ctx context.Context, key string, ttl *time.Duration) (int, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int

	if entry, exists := s.store[key]; exists {
		if entry.expiresAt != nil && time.Now().After(*entry.expiresAt) {
			count = 0
		} else {
			num, err := strconv.Atoi(entry.value)
			if err != nil {
				return 0, fmt.Errorf("value at key %s is not a valid integer: %w", key, err)
			}
			count = num
		}
	}

	count++

	entry := &storeEntry{
		value: strconv.Itoa(count),
	}

	if ttl != nil {
		expiresAt := time.Now().Add(*ttl)
		entry.expiresAt = &expiresAt
	} else if existing, exists := s.store[key]; exists {
		entry.expiresAt = existing.expiresAt
	}

	s.store[key] = entry

	return count, nil
}

// TTL returns the remaining time to live for a key.
// Returns nil if the key does not exist, has expired, or has no expiration.
func (s *MemoryExpiringStore) TTL(ctx context.Context, key string) (*time.Duration, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.store[key]
	if !exists || entry.expiresAt == nil {
		return nil, nil
	}

	remaining := time.Until(*entry.expiresAt)
	if remaining <= 0 {
		return nil, nil
	}

	return &remaining, nil
}

// cleanupExpiredEntries runs periodically to remove expired entries.
// This prevents memory growth from entries with TTL that are never accessed.
func (s *MemoryExpiringStore) cleanupExpiredEntries() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.removeExpiredEntries()
		}
	}
}

func (s *MemoryExpiringStore) removeExpiredEntries() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.store {
		if entry.expiresAt != nil && now.After(*entry.expiresAt) {
			delete(s.store, key)
		}
	}
}

// Close gracefully shuts down the store by stopping the cleanup goroutine.
func (s *MemoryExpiringStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
		<-s.done
	})
	return nil
}
