package config

import (
	"fmt"
	"os"
	"time"

	"github.com/GoDataGuard/go-data-guard/env"
	"github.com/GoDataGuard/go-data-guard/models"
)

const defaultSecret = "data-guard-secret-0123456789abcd"

const defaultMinSecretLength = 32

type ConfigOption func(*models.Config)

// NewConfig builds a Config using functional options with sensible defaults.
// Panics if the signing secret violates the secret policy in production:
// issuing tokens with a known-weak or short secret must fail at startup, not
// at first use.
func NewConfig(options ...ConfigOption) *models.Config {
	config := &models.Config{
		AppName: "DataGuard",
		Secret:  defaultSecret,
		Store: models.StoreConfig{
			ConnectTimeout:   5 * time.Second,
			OperationTimeout: 5 * time.Second,
			CleanupInterval:  time.Minute,
			MaxRetries:       3,
			PoolSize:         10,
		},
		Database: models.DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Minute * 10,
		},
		Session: models.SessionConfig{
			TokenLifetime:       time.Hour * 24 * 7, // 7 days by default
			AccessTokenLifetime: time.Minute * 15,
		},
		Security: models.SecurityConfig{
			MinSecretLength: defaultMinSecretLength,
		},
		Retention: models.RetentionConfig{},
		Logger:    models.LoggerConfig{},
		EventBus:  models.EventBusConfig{},
	}

	for _, option := range options {
		option(config)
	}

	if err := ValidateSecret(config); err != nil {
		panic(err)
	}

	return config
}

// ValidateSecret enforces the signing-secret policy. In production the
// built-in default is always rejected; in any environment a secret shorter
// than the configured minimum is rejected.
func ValidateSecret(config *models.Config) error {
	if os.Getenv(env.EnvGoEnvironment) == "production" && config.Secret == defaultSecret {
		return fmt.Errorf("a custom secret must be set in production mode. Please set a custom secret via configuration or the %s environment variable", env.EnvSecret)
	}

	minLen := config.Security.MinSecretLength
	if minLen <= 0 {
		minLen = defaultMinSecretLength
	}
	if len(config.Secret) < minLen {
		return fmt.Errorf("signing secret must be at least %d bytes, got %d", minLen, len(config.Secret))
	}

	return nil
}

func WithAppName(name string) ConfigOption {
	return func(c *models.Config) {
		if name != "" {
			c.AppName = name
		}
	}
}

func WithSecret(secret string) ConfigOption {
	return func(c *models.Config) {
		if envValue := os.Getenv(env.EnvSecret); envValue != "" {
			c.Secret = envValue
		} else if secret != "" {
			c.Secret = secret
		}
	}
}

func WithStore(config models.StoreConfig) ConfigOption {
	return func(c *models.Config) {
		if envValue := os.Getenv(env.EnvRedisURL); envValue != "" {
			c.Store.RedisURL = envValue
		} else if config.RedisURL != "" {
			c.Store.RedisURL = config.RedisURL
		}
		if envValue := os.Getenv(env.EnvStoreConnectTimeout); envValue != "" {
			if d, err := time.ParseDuration(envValue); err == nil {
				c.Store.ConnectTimeout = d
			}
		} else if config.ConnectTimeout != 0 {
			c.Store.ConnectTimeout = config.ConnectTimeout
		}
		if config.OperationTimeout != 0 {
			c.Store.OperationTimeout = config.OperationTimeout
		}
		if config.CleanupInterval != 0 {
			c.Store.CleanupInterval = config.CleanupInterval
		}
		if config.MaxRetries != 0 {
			c.Store.MaxRetries = config.MaxRetries
		}
		if config.PoolSize != 0 {
			c.Store.PoolSize = config.PoolSize
		}
	}
}

func WithDatabase(config models.DatabaseConfig) ConfigOption {
	return func(c *models.Config) {
		if config.Provider != "" {
			c.Database.Provider = config.Provider
		}
		if envValue := os.Getenv(env.EnvDatabaseURL); envValue != "" {
			c.Database.URL = envValue
		} else if config.URL != "" {
			c.Database.URL = config.URL
		}
		if config.MaxOpenConns != 0 {
			c.Database.MaxOpenConns = config.MaxOpenConns
		}
		if config.MaxIdleConns != 0 {
			c.Database.MaxIdleConns = config.MaxIdleConns
		}
		if config.ConnMaxLifetime != 0 {
			c.Database.ConnMaxLifetime = config.ConnMaxLifetime
		}
	}
}

func WithSession(config models.SessionConfig) ConfigOption {
	return func(c *models.Config) {
		if envValue := os.Getenv(env.EnvTokenLifetime); envValue != "" {
			if d, err := time.ParseDuration(envValue); err == nil {
				c.Session.TokenLifetime = d
			}
		} else if config.TokenLifetime != 0 {
			c.Session.TokenLifetime = config.TokenLifetime
		}
		if config.AccessTokenLifetime != 0 {
			c.Session.AccessTokenLifetime = config.AccessTokenLifetime
		}
	}
}

func WithSecurity(config models.SecurityConfig) ConfigOption {
	return func(c *models.Config) {
		if config.MinSecretLength != 0 {
			c.Security.MinSecretLength = config.MinSecretLength
		}
	}
}

func WithRetention(config models.RetentionConfig) ConfigOption {
	return func(c *models.Config) {
		if len(config.Overrides) > 0 {
			c.Retention.Overrides = config.Overrides
		}
	}
}

func WithLogger(config models.LoggerConfig) ConfigOption {
	return func(c *models.Config) {
		if config.Level != "" {
			c.Logger.Level = config.Level
		}
	}
}

func WithEventBus(config models.EventBusConfig) ConfigOption {
	return func(c *models.Config) {
		if config.Prefix != "" {
			c.EventBus.Prefix = config.Prefix
		}
		if config.MaxConcurrentHandlers > 0 {
			c.EventBus.MaxConcurrentHandlers = config.MaxConcurrentHandlers
		}
		if config.BufferSize > 0 {
			c.EventBus.BufferSize = config.BufferSize
		}
	}
}
