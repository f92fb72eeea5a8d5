package config

const EnvPrefix = "NCCART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverFile     = "file"
	StorageDriverRedis    = "redis"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
)

const (
	EnvAppEnv           = "NCCART_APP_ENV"
	EnvPort             = "NCCART_APP_PORT"
	EnvLogLevel         = "NCCART_LOG_LEVEL"
	EnvCORSOrigins      = "NCCART_CORS_ORIGINS"
	EnvAPIBaseURL       = "NCCART_API_BASE_URL"
	EnvAPITimeout       = "NCCART_API_TIMEOUT"
	EnvStorageDriver    = "NCCART_STORAGE_DRIVER"
	EnvStoragePath      = "NCCART_STORAGE_PATH"
	EnvGuestCartKey     = "NCCART_GUEST_CART_KEY"
	EnvRedisURL         = "NCCART_REDIS_URL"
	EnvRedisAddr        = "NCCART_REDIS_ADDR"
	EnvDBDSN            = "NCCART_DB_DSN"
	EnvAnalyticsEnabled = "NCCART_ANALYTICS_ENABLED"
	EnvGCPProjectID     = "NCCART_GCP_PROJECT_ID"
	EnvAnalyticsTopic   = "NCCART_ANALYTICS_TOPIC"
)
