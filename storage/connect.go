package storage

import (
	"github.com/GoDataGuard/go-data-guard/models"
)

// Connect selects the expiring-store backend. It attempts the persistent
// Redis backend within the configured connect timeout and falls back
// transparently to the in-process store on failure, logging the degraded-mode
// limitation: the fallback is process-local, so rate limits and blacklists
// only hold within a single process until Redis is reachable again.
func Connect(config models.StoreConfig, logger models.Logger) (models.ExpiringStore, models.ExpiringStoreType) {
	if config.RedisURL != "" {
		store, err := NewRedisExpiringStore(RedisStorageOptions{
			URL:              config.RedisURL,
			MaxRetries:       config.MaxRetries,
			PoolSize:         config.PoolSize,
			ConnectTimeout:   config.ConnectTimeout,
			OperationTimeout: config.OperationTimeout,
		})
		if err == nil {
			return store, models.ExpiringStoreTypeRedis
		}
		logger.Warn("failed to initialize Redis store, falling back to memory; limits and blacklists are process-local in this mode",
			"error", err,
		)
	} else {
		logger.Warn("no Redis URL configured, using in-process store; limits and blacklists are process-local in this mode")
	}

	return NewMemoryExpiringStore(MemoryStorageConfig{
		CleanupInterval: config.CleanupInterval,
	}), models.ExpiringStoreTypeMemory
}
