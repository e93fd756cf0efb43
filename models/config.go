package models

import (
	"time"
)

// Config holds the core configuration for the engine.
type Config struct {
	AppName   string          `json:"app_name" toml:"app_name"`
	Secret    string          `json:"secret" toml:"secret"`
	Store     StoreConfig     `json:"store" toml:"store"`
	Database  DatabaseConfig  `json:"database" toml:"database"`
	Logger    LoggerConfig    `json:"logger" toml:"logger"`
	Session   SessionConfig   `json:"session" toml:"session"`
	Security  SecurityConfig  `json:"security" toml:"security"`
	Retention RetentionConfig `json:"retention" toml:"retention"`
	EventBus  EventBusConfig  `json:"event_bus" toml:"event_bus"`
}

// StoreConfig configures the expiring key-value store.
type StoreConfig struct {
	// RedisURL is the persistent backend connection URL. Empty means the
	// in-memory fallback is used from the start.
	RedisURL string `json:"redis_url" toml:"redis_url"`
	// ConnectTimeout bounds the startup connection attempt against the
	// persistent backend.
	ConnectTimeout time.Duration `json:"connect_timeout" toml:"connect_timeout"`
	// OperationTimeout bounds each individual store call.
	OperationTimeout time.Duration `json:"operation_timeout" toml:"operation_timeout"`
	// CleanupInterval controls the in-memory fallback's expiry sweep.
	CleanupInterval time.Duration `json:"cleanup_interval" toml:"cleanup_interval"`
	MaxRetries      int           `json:"max_retries" toml:"max_retries"`
	PoolSize        int           `json:"pool_size" toml:"pool_size"`
}

type DatabaseConfig struct {
	Provider        string        `json:"provider" toml:"provider"`
	URL             string        `json:"url" toml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" toml:"conn_max_lifetime"`
}

type LoggerConfig struct {
	Level string `json:"level" toml:"level"`
}

// SessionConfig configures refresh-token issuance.
type SessionConfig struct {
	// TokenLifetime is the refresh token TTL.
	TokenLifetime time.Duration `json:"token_lifetime" toml:"token_lifetime"`
	// AccessTokenLifetime is the lifetime of the signed bearer token minted
	// alongside each refresh token.
	AccessTokenLifetime time.Duration `json:"access_token_lifetime" toml:"access_token_lifetime"`
}

// SecurityConfig holds the token-secret policy.
type SecurityConfig struct {
	// MinSecretLength is the minimum accepted signing-secret length in bytes.
	MinSecretLength int `json:"min_secret_length" toml:"min_secret_length"`
}

// RetentionConfig carries per-category retention-day overrides keyed by
// category name. Zero or missing entries keep the built-in default.
type RetentionConfig struct {
	Overrides map[string]int `json:"overrides" toml:"overrides"`
}

type EventBusConfig struct {
	Prefix                string `json:"prefix" toml:"prefix"`
	MaxConcurrentHandlers int    `json:"max_concurrent_handlers" toml:"max_concurrent_handlers"`
	BufferSize            int    `json:"buffer_size" toml:"buffer_size"`
}
