package config

import (
	"testing"
	"time"

	"github.com/GoDataGuard/go-data-guard/env"
	"github.com/GoDataGuard/go-data-guard/models"
)

// TestNewConfigDefaults checks the defaults applied without options
func TestNewConfigDefaults(t *testing.T) {
	config := NewConfig()

	if config.AppName != "DataGuard" {
		t.Errorf("unexpected default app name %q", config.AppName)
	}
	if config.Session.TokenLifetime != 7*24*time.Hour {
		t.Errorf("default refresh token lifetime should be 7 days, got %v", config.Session.TokenLifetime)
	}
	if config.Session.AccessTokenLifetime != 15*time.Minute {
		t.Errorf("default access token lifetime should be 15 minutes, got %v", config.Session.AccessTokenLifetime)
	}
	if config.Security.MinSecretLength != 32 {
		t.Errorf("default minimum secret length should be 32, got %d", config.Security.MinSecretLength)
	}
	if config.Store.ConnectTimeout != 5*time.Second {
		t.Errorf("default connect timeout should be 5s, got %v", config.Store.ConnectTimeout)
	}
}

// TestNewConfigOptions applies options over the defaults
func TestNewConfigOptions(t *testing.T) {
	config := NewConfig(
		WithAppName("ComplianceEngine"),
		WithSecret("custom-secret-0123456789abcdef01"),
		WithSession(models.SessionConfig{TokenLifetime: 48 * time.Hour}),
		WithRetention(models.RetentionConfig{Overrides: map[string]int{"analytics": 30}}),
		WithEventBus(models.EventBusConfig{Prefix: "dataguard"}),
	)

	if config.AppName != "ComplianceEngine" {
		t.Errorf("app name option should apply, got %q", config.AppName)
	}
	if config.Secret != "custom-secret-0123456789abcdef01" {
		t.Error("secret option should apply")
	}
	if config.Session.TokenLifetime != 48*time.Hour {
		t.Errorf("session option should apply, got %v", config.Session.TokenLifetime)
	}
	if config.Session.AccessTokenLifetime != 15*time.Minute {
		t.Errorf("unset session fields should keep defaults, got %v", config.Session.AccessTokenLifetime)
	}
	if config.Retention.Overrides["analytics"] != 30 {
		t.Error("retention override option should apply")
	}
	if config.EventBus.Prefix != "dataguard" {
		t.Errorf("event bus prefix option should apply, got %q", config.EventBus.Prefix)
	}
}

// TestNewConfigPanicsOnShortSecret enforces the secret policy at startup
func TestNewConfigPanicsOnShortSecret(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("a secret below the minimum length should panic at startup")
		}
	}()

	NewConfig(WithSecret("short"))
}

// TestNewConfigPanicsOnDefaultSecretInProduction rejects the built-in secret in production
func TestNewConfigPanicsOnDefaultSecretInProduction(t *testing.T) {
	t.Setenv(env.EnvGoEnvironment, "production")

	defer func() {
		if r := recover(); r == nil {
			t.Error("the default secret should panic in production mode")
		}
	}()

	NewConfig()
}

// TestConfigEnvOverrides ensures environment variables win over option values
func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv(env.EnvSecret, "env-supplied-secret-0123456789ab")
	t.Setenv(env.EnvRedisURL, "redis://env-host:6379/0")
	t.Setenv(env.EnvTokenLifetime, "1h")

	config := NewConfig(
		WithSecret("option-secret-0123456789abcdef01"),
		WithStore(models.StoreConfig{RedisURL: "redis://option-host:6379/0"}),
		WithSession(models.SessionConfig{TokenLifetime: 48 * time.Hour}),
	)

	if config.Secret != "env-supplied-secret-0123456789ab" {
		t.Errorf("environment secret should win, got %q", config.Secret)
	}
	if config.Store.RedisURL != "redis://env-host:6379/0" {
		t.Errorf("environment redis URL should win, got %q", config.Store.RedisURL)
	}
	if config.Session.TokenLifetime != time.Hour {
		t.Errorf("environment token lifetime should win, got %v", config.Session.TokenLifetime)
	}
}
