package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryProvider is a thread-safe in-memory sliding-window provider. Each
// identifier keeps an ordered slice of event timestamps guarded by its own
// mutex, so concurrent calls for the same identifier serialize while distinct
// identifiers proceed independently.
type MemoryProvider struct {
	mu      sync.RWMutex
	windows map[string]*eventWindow

	// now is swappable for tests that need a synthetic clock.
	now func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

type eventWindow struct {
	mu     sync.Mutex
	events []time.Time
	// span is the window duration last used with this identifier; the idle
	// sweep must not drop events younger than it.
	span time.Duration
	// dead is set under mu when the idle sweep removes the window from the
	// map. A caller that raced the sweep and still holds the old pointer
	// must discard it and re-fetch, or its event would be recorded into an
	// orphaned window and the identifier's count would restart.
	dead bool
}

// MemoryProviderConfig configures the in-memory provider.
type MemoryProviderConfig struct {
	CleanupInterval time.Duration
}

// NewMemoryProvider creates a new in-memory sliding-window provider.
func NewMemoryProvider() *MemoryProvider {
	return NewMemoryProviderWithConfig(MemoryProviderConfig{})
}

// NewMemoryProviderWithConfig creates a new in-memory provider with custom config.
func NewMemoryProviderWithConfig(config MemoryProviderConfig) *MemoryProvider {
	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = time.Minute
	}

	provider := &MemoryProvider{
		windows:         make(map[string]*eventWindow),
		now:             time.Now,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go provider.cleanupIdle()

	return provider
}

// GetName returns the provider name
func (p *MemoryProvider) GetName() string {
	return string(ProviderTypeMemory)
}

// SetClock replaces the provider's clock. Test hook only.
func (p *MemoryProvider) SetClock(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

func (p *MemoryProvider) clock() func() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.now
}

// CheckAndRecord prunes, checks and records atomically per identifier.
func (p *MemoryProvider) CheckAndRecord(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("context canceled: %w", ctx.Err())
	default:
	}

	w := p.window(key)
	w.mu.Lock()
	for w.dead {
		// The idle sweep removed this window between the map lookup and the
		// lock; fetch the live one.
		w.mu.Unlock()
		w = p.window(key)
		w.mu.Lock()
	}
	defer w.mu.Unlock()

	now := p.clock()()
	cutoff := now.Add(-window)
	w.span = window

	// Prune events that have left the window. Events are appended in order,
	// so the first surviving index bounds the live set.
	idx := 0
	for idx < len(w.events) && !w.events[idx].After(cutoff) {
		idx++
	}
	w.events = w.events[idx:]

	if len(w.events) >= limit {
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   w.events[0].Add(window),
		}, nil
	}

	w.events = append(w.events, now)

	return Result{
		Allowed:   true,
		Remaining: limit - len(w.events),
		ResetAt:   w.events[0].Add(window),
	}, nil
}

func (p *MemoryProvider) window(key string) *eventWindow {
	p.mu.RLock()
	w, exists := p.windows[key]
	p.mu.RUnlock()
	if exists {
		return w
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if w, exists = p.windows[key]; exists {
		return w
	}
	w = &eventWindow{}
	p.windows[key] = w
	return w
}

// cleanupIdle periodically drops identifiers whose windows have drained, so
// abandoned identifiers self-clean.
func (p *MemoryProvider) cleanupIdle() {
	ticker := time.NewTicker(p.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCleanup:
			return
		case <-ticker.C:
			p.mu.Lock()
			for key, w := range p.windows {
				w.mu.Lock()
				idle := len(w.events) == 0 || p.now().Sub(w.events[len(w.events)-1]) > w.span
				if idle {
					w.dead = true
					delete(p.windows, key)
				}
				w.mu.Unlock()
			}
			p.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (p *MemoryProvider) Close() error {
	p.closeOnce.Do(func() {
		close(p.stopCleanup)
	})
	return nil
}
