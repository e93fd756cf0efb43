package ratelimit

import (
	"context"
	"time"

	"github.com/GoDataGuard/go-data-guard/models"
)

const defaultKeyPrefix = "ratelimit:"

// Limiter is the sliding-window rate limiter exposed to the presentation
// layer. It namespaces identifiers and fails closed: any backend error
// propagates as a deny decision, never as a false "allowed" during an outage.
type Limiter struct {
	provider Provider
	logger   models.Logger
	prefix   string
}

// LimiterOptions configures a Limiter.
type LimiterOptions struct {
	// Prefix overrides the storage key namespace.
	Prefix string
}

// NewLimiter creates a Limiter over the given provider.
func NewLimiter(provider Provider, logger models.Logger, opts LimiterOptions) *Limiter {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Limiter{
		provider: provider,
		logger:   logger,
		prefix:   prefix,
	}
}

// CheckAndRecord evaluates the identifier against the limit for the window.
// identifier is arbitrary (IP, email, API key); callers should scope it,
// e.g. "login:user@example.com".
func (l *Limiter) CheckAndRecord(ctx context.Context, identifier string, limit int, window time.Duration) Result {
	result, err := l.provider.CheckAndRecord(ctx, l.prefix+identifier, limit, window)
	if err != nil {
		// Fail closed: denying during a backend outage beats opening the
		// door to abuse.
		l.logger.Error("rate limit check failed, denying request",
			"identifier", identifier,
			"provider", l.provider.GetName(),
			"error", err,
		)
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   time.Now().Add(window),
		}
	}

	if !result.Allowed {
		l.logger.Debug("rate limit exceeded",
			"identifier", identifier,
			"limit", limit,
			"reset_at", result.ResetAt,
		)
	}

	return result
}

// Close releases the underlying provider.
func (l *Limiter) Close() error {
	return l.provider.Close()
}
