package env

const (
	// REDIS (persistent expiring key-value store)

	EnvRedisURL = "REDIS_URL"

	// RELATIONAL STORE

	EnvDatabaseURL = "DATA_GUARD_DATABASE_URL"

	// DATA GUARD

	EnvSecret              = "DATA_GUARD_SECRET"
	EnvTokenLifetime       = "DATA_GUARD_TOKEN_LIFETIME"
	EnvStoreConnectTimeout = "DATA_GUARD_STORE_CONNECT_TIMEOUT"

	// ENVIRONMENT

	EnvGoEnvironment = "GO_ENV"
)
