package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorageOptions configures a Redis-backed expiring store.
type RedisStorageOptions struct {
	URL              string
	MaxRetries       int
	PoolSize         int
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// RedisExpiringStore implements ExpiringStore using Redis as the persistent
// backend. TTL is enforced server-side and entries survive process restart.
type RedisExpiringStore struct {
	client *redis.Client
}

// NewRedisExpiringStore creates a Redis-backed store and verifies
// connectivity within the configured connect timeout.
func NewRedisExpiringStore(opts RedisStorageOptions) (*RedisExpiringStore, error) {
	if opts.URL == "" {
		return nil, ErrRedisURLNotProvided
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.OperationTimeout == 0 {
		opts.OperationTimeout = 5 * time.Second
	}

	opt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opt.MaxRetries = opts.MaxRetries
	opt.PoolSize = opts.PoolSize
	opt.DialTimeout = opts.ConnectTimeout
	opt.ReadTimeout = opts.OperationTimeout
	opt.WriteTimeout = opts.OperationTimeout

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisExpiringStore{
		client: client,
	}, nil
}

// Client exposes the underlying Redis client for callers that need the
// backend's atomic primitives (the rate limiter's window script).
func (rs *RedisExpiringStore) Client() *redis.Client {
	return rs.client
}

// Get retrieves a value from Redis by key.
// Returns nil if the key does not exist.
func (rs *RedisExpiringStore) Get(ctx context.Context, key string) (any, error) {
	val, err := rs.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return val, nil
}

// Set stores a value in Redis with an optional TTL.
// The value must be a string.
func (rs *RedisExpiringStore) Set(ctx context.Context, key string, value any, ttl *time.Duration) error {
	valueStr, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w, got %T", ErrValueNotString, value)
	}

	var expiration time.Duration
	if ttl != nil {
		expiration = *ttl
	}

	if err := rs.client.Set(ctx, key, valueStr, expiration).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete removes a key from Redis.
func (rs *RedisExpiringStore) Delete(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Keys returns all keys matching the given prefix using cursor-based SCAN,
// so the scan never blocks the server the way KEYS would.
func (rs *RedisExpiringStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		batch, next, err := rs.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan error: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// Incr atomically increments an integer value in Redis by 1.
// If the key does not exist, it is set to 1.
// If a TTL is provided, it is only applied on key creation.
func (rs *RedisExpiringStore) Incr(ctx context.Context, key string, ttl *time.Duration) (int, error) {
	exists, err := rs.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis exists check error: %w", err)
	}

	val, err := rs.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr error: %w", err)
	}

	if exists == 0 && ttl != nil {
		if err := rs.client.Expire(ctx, key, *ttl).Err(); err != nil {
			return 0, fmt.Errorf("redis expire error: %w", err)
		}
	}

	return int(val), nil
}

// TTL returns the remaining time to live for a key.
// Returns nil if the key does not exist or has no expiration.
func (rs *RedisExpiringStore) TTL(ctx context.Context, key string) (*time.Duration, error) {
	ttl, err := rs.client.TTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ttl error: %w", err)
	}

	// Redis returns -1 if key exists but has no associated expire
	// Redis returns -2 if key does not exist
	if ttl == -1 || ttl == -2 {
		return nil, nil
	}

	return &ttl, nil
}

// Close closes the Redis connection.
func (rs *RedisExpiringStore) Close() error {
	if rs.client != nil {
		return rs.client.Close()
	}
	return nil
}
