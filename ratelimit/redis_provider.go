package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes expired events, checks the count against the
// limit, and inserts the new event in a single atomic server-side step.
// Returns {allowed, count, oldestMs} where count is the number of events in
// the window after the call and oldestMs is the score of the oldest survivor.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, count, tonumber(oldest[2])}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {1, count + 1, tonumber(oldest[2])}
`)

// RedisProvider enforces sliding-window limits against a shared Redis
// backend, so limits hold across processes. Each event is a member of a
// sorted set scored by its timestamp in milliseconds; the whole
// prune-check-insert sequence runs as one Lua script.
type RedisProvider struct {
	client *redis.Client
}

// NewRedisProvider creates a provider over an existing Redis client. The
// provider does not own the client and Close is a no-op.
func NewRedisProvider(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client}
}

// GetName returns the provider name
func (p *RedisProvider) GetName() string {
	return string(ProviderTypeRedis)
}

// CheckAndRecord runs the atomic sliding-window script.
func (p *RedisProvider) CheckAndRecord(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("context canceled: %w", ctx.Err())
	default:
	}

	now := time.Now()
	member := fmt.Sprintf("%d-%s", now.UnixNano(), key)

	raw, err := slidingWindowScript.Run(ctx, p.client,
		[]string{key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		member,
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script error: %w", err)
	}

	vals, ok := raw.([]any)
	if !ok || len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected rate limit script reply: %v", raw)
	}

	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	oldestMs, _ := vals[2].(int64)

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   allowed == 1,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(oldestMs).Add(window),
	}, nil
}

// Close is a no-op since the provider does not own the client.
func (p *RedisProvider) Close() error {
	return nil
}
