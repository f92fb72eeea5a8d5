package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	API       APIConfig
	Storage   StorageConfig
	Redis     RedisConfig
	DB        DBConfig
	Analytics AnalyticsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"NCCART_APP_ENV" default:"dev"`
	Port         string   `envconfig:"NCCART_APP_PORT" default:"8787"`
	LogLevel     string   `envconfig:"NCCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"NCCART_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"NCCART_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// APIConfig points at the remote cart REST API. A zero timeout leaves the
// transport defaults in charge.
type APIConfig struct {
	BaseURL string        `envconfig:"NCCART_API_BASE_URL" default:"https://api.thenursingcollective.pro"`
	Timeout time.Duration `envconfig:"NCCART_API_TIMEOUT" default:"0s"`
}

type StorageConfig struct {
	Driver       string `envconfig:"NCCART_STORAGE_DRIVER" default:"file"`
	Path         string `envconfig:"NCCART_STORAGE_PATH" default:"cart-local.json"`
	GuestCartKey string `envconfig:"NCCART_GUEST_CART_KEY" default:"florencebot_guest_cart"`
}

// NormalizedDriver returns the lower-cased storage driver name.
func (s StorageConfig) NormalizedDriver() string {
	return strings.ToLower(strings.TrimSpace(s.Driver))
}

type RedisConfig struct {
	URL          string        `envconfig:"NCCART_REDIS_URL"`
	Address      string        `envconfig:"NCCART_REDIS_ADDR"`
	Password     string        `envconfig:"NCCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"NCCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NCCART_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"NCCART_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"NCCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NCCART_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"NCCART_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type DBConfig struct {
	DSN             string        `envconfig:"NCCART_DB_DSN"`
	MaxOpenConns    int           `envconfig:"NCCART_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"NCCART_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"NCCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NCCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"NCCART_DB_AUTO_MIGRATE" default:"true"`
}

type AnalyticsConfig struct {
	Enabled         bool          `envconfig:"NCCART_ANALYTICS_ENABLED" default:"false"`
	ProjectID       string        `envconfig:"NCCART_GCP_PROJECT_ID"`
	CredentialsJSON string        `envconfig:"NCCART_GCP_CREDENTIALS_JSON"`
	Topic           string        `envconfig:"NCCART_ANALYTICS_TOPIC" default:"cart-events"`
	PublishTimeout  time.Duration `envconfig:"NCCART_ANALYTICS_PUBLISH_TIMEOUT" default:"5s"`
}

func (c *Config) validate() error {
	switch c.Storage.NormalizedDriver() {
	case StorageDriverMemory:
	case StorageDriverFile:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("%s is required for the file storage driver", EnvStoragePath)
		}
	case StorageDriverRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis storage driver", EnvRedisURL, EnvRedisAddr)
		}
	case StorageDriverSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" && c.DB.DSN == "" {
			return fmt.Errorf("either %s or %s is required for the sqlite storage driver", EnvStoragePath, EnvDBDSN)
		}
	case StorageDriverPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("%s is required for the postgres storage driver", EnvDBDSN)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	if strings.TrimSpace(c.Storage.GuestCartKey) == "" {
		return fmt.Errorf("%s must not be empty", EnvGuestCartKey)
	}

	if c.Analytics.Enabled && strings.TrimSpace(c.Analytics.ProjectID) == "" {
		return fmt.Errorf("%s is required when analytics is enabled", EnvGCPProjectID)
	}
	return nil
}

// SQLDSN resolves the connection string for the SQL-backed storage drivers.
// sqlite falls back to the storage path when no DSN is set.
func (c *Config) SQLDSN() string {
	if dsn := strings.TrimSpace(c.DB.DSN); dsn != "" {
		return dsn
	}
	if c.Storage.NormalizedDriver() == StorageDriverSQLite {
		return strings.TrimSpace(c.Storage.Path)
	}
	return ""
}
