package platform

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Deployment environments.
const (
	EnvDev        = "dev"
	EnvProduction = "production"
)

// Cache backends.
const (
	CacheBackendPostgres = "postgres"
	CacheBackendRedis    = "redis"
	CacheBackendMemory   = "memory"
)

// AppConfig is the service configuration read from the environment.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	DatabaseURL  string `envconfig:"DATABASE_URL"`
	AutoMigrate  bool   `envconfig:"AUTO_MIGRATE" default:"true"`
	JWTSecret    string `envconfig:"JWT_SECRET"`
	CacheBackend string `envconfig:"CACHE_BACKEND" default:"postgres"`
	RedisAddr    string `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	Archive struct {
		Backend   string `envconfig:"ARCHIVE_BACKEND" default:"local"`
		LocalDir  string `envconfig:"ARCHIVE_DIR" default:"./data/archive"`
		Bucket    string `envconfig:"ARCHIVE_BUCKET"`
		Region    string `envconfig:"ARCHIVE_REGION" default:"us-east-1"`
		Endpoint  string `envconfig:"ARCHIVE_ENDPOINT"`
		AccessKey string `envconfig:"ARCHIVE_ACCESS_KEY"`
		SecretKey string `envconfig:"ARCHIVE_SECRET_KEY"`
	} `envconfig:""`

	Scoring struct {
		CollectorTimeout time.Duration `envconfig:"SW_COLLECTOR_TIMEOUT" default:"3s"`
		ContentWindow    int           `envconfig:"SW_CONTENT_WINDOW" default:"500"`
		UserCountTTL     time.Duration `envconfig:"SW_USER_COUNT_TTL" default:"1h"`
		WeightsFile      string        `envconfig:"SW_WEIGHTS_FILE"`
	} `envconfig:""`

	Otel OtelConfig `envconfig:""`

	CORSOrigins string `envconfig:"CORS_ORIGINS"`
}

// LoadConfig reads AppConfig from the environment.
func LoadConfig() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c AppConfig) Validate() error {
	switch c.CacheBackend {
	case CacheBackendPostgres, CacheBackendRedis, CacheBackendMemory:
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.Scoring.CollectorTimeout <= 0 {
		return fmt.Errorf("SW_COLLECTOR_TIMEOUT must be positive")
	}
	if c.Scoring.ContentWindow <= 0 {
		return fmt.Errorf("SW_CONTENT_WINDOW must be positive")
	}
	return nil
}

// Production reports whether the service runs in production.
func (c AppConfig) Production() bool {
	return c.AppEnv == EnvProduction
}
