package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	godataguard "github.com/GoDataGuard/go-data-guard"
	godataguardconfig "github.com/GoDataGuard/go-data-guard/config"
	godataguardmodels "github.com/GoDataGuard/go-data-guard/models"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Run the engine in standalone mode as a scheduled compliance worker: the
// retention cleanup runs on a fixed interval until the process receives a
// shutdown signal.
func main() {
	err := godotenv.Load()
	if err != nil {
		env := os.Getenv("GO_ENV")
		if env != "production" {
			log.Fatal("No .env file found", "error", err)
			return
		}
	}

	// Load configuration from TOML file if available
	tomlConfig := loadConfigFromFile()

	engineConfig := godataguardconfig.NewConfig(
		godataguardconfig.WithAppName(tomlConfig.AppName),
		godataguardconfig.WithSecret(tomlConfig.Secret),
		godataguardconfig.WithLogger(tomlConfig.Logger),
		godataguardconfig.WithStore(tomlConfig.Store),
		godataguardconfig.WithDatabase(tomlConfig.Database),
		godataguardconfig.WithSession(tomlConfig.Session),
		godataguardconfig.WithSecurity(tomlConfig.Security),
		godataguardconfig.WithRetention(tomlConfig.Retention),
		godataguardconfig.WithEventBus(tomlConfig.EventBus),
	)

	engine, err := godataguard.New(engineConfig, godataguard.Options{})
	if err != nil {
		slog.Error("Failed to initialize engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	logger := engine.Logger()

	interval := 24 * time.Hour
	if raw := os.Getenv("DATA_GUARD_CLEANUP_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			logger.Warn("Invalid cleanup interval, using default", "value", raw, "error", err)
		} else {
			interval = parsed
		}
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Starting scheduled retention cleanup worker", "interval", interval.String())
	runCleanup(engine, logger)

	for {
		select {
		case <-ticker.C:
			runCleanup(engine, logger)
		case sig := <-shutdownChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			return
		}
	}
}

func runCleanup(engine *godataguard.Engine, logger godataguardmodels.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := engine.Lifecycle().RunCleanup(ctx)
	if err != nil {
		logger.Error("Retention cleanup run failed", "error", err)
		return
	}

	logger.Info("Retention cleanup run completed",
		"categories", len(result.Categories),
		"total_deleted", result.TotalDeleted,
	)
}

// loadConfigFromFile attempts to load configuration from TOML file if it exists
func loadConfigFromFile() godataguardmodels.Config {
	configPath := getEnv("DATA_GUARD_CONFIG_PATH", "config.toml")
	var config godataguardmodels.Config

	if _, err := os.Stat(configPath); err != nil {
		// File doesn't exist, return empty config - will use env vars and defaults
		return config
	}

	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		slog.Warn("Failed to parse TOML config file, will use environment variables and defaults", "path", configPath, "error", err)
	}

	return config
}
