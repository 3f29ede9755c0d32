package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"

	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8083"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	StoreDriver    string `envconfig:"STORE_DRIVER" default:"postgres"`
	DBHost         string `envconfig:"DB_HOST" default:"localhost"`
	DBPort         int    `envconfig:"DB_PORT" default:"5432"`
	DBUser         string `envconfig:"DB_USER" default:"postgres"`
	DBPassword     string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName         string `envconfig:"DB_NAME" default:"cartdb"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"./cart.db"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"./internal/repository/migrations"`

	CacheDriver        string        `envconfig:"CACHE_DRIVER" default:"redis"`
	RedisAddr          string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword      string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB            int           `envconfig:"REDIS_DB" default:"0"`
	ProductCacheTTL    time.Duration `envconfig:"PRODUCT_CACHE_TTL" default:"1h"`
	ProductCacheJitter time.Duration `envconfig:"PRODUCT_CACHE_JITTER" default:"5m"`

	CatalogBaseURL string        `envconfig:"CATALOG_BASE_URL" default:"http://localhost:3002/api/products"`
	CatalogTimeout time.Duration `envconfig:"CATALOG_TIMEOUT" default:"3s"`

	KafkaBrokers       []string      `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic         string        `envconfig:"KAFKA_TOPIC" default:"product-events"`
	KafkaGroupID       string        `envconfig:"KAFKA_GROUP_ID" default:"cart-service-group"`
	KafkaDLQTopic      string        `envconfig:"KAFKA_DLQ_TOPIC" default:""`
	EventHandleTimeout time.Duration `envconfig:"EVENT_HANDLE_TIMEOUT" default:"5s"`

	ResolveConcurrency int `envconfig:"RESOLVE_CONCURRENCY" default:"8"`
	MaxItemQuantity    int `envconfig:"MAX_ITEM_QUANTITY" default:"99"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverSQLite, c.StoreDriver))
	}
	switch c.CacheDriver {
	case CacheDriverRedis, CacheDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("CACHE_DRIVER must be %q or %q, got %q", CacheDriverRedis, CacheDriverMemory, c.CacheDriver))
	}

	for name, d := range map[string]time.Duration{
		"REQUEST_TIMEOUT":      c.RequestTimeout,
		"SHUTDOWN_TIMEOUT":     c.ShutdownTimeout,
		"PRODUCT_CACHE_TTL":    c.ProductCacheTTL,
		"CATALOG_TIMEOUT":      c.CatalogTimeout,
		"EVENT_HANDLE_TIMEOUT": c.EventHandleTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.ProductCacheJitter < 0 {
		errs = append(errs, errors.New("PRODUCT_CACHE_JITTER must not be negative"))
	}
	if c.ResolveConcurrency < 1 {
		errs = append(errs, errors.New("RESOLVE_CONCURRENCY must be at least 1"))
	}
	if c.MaxItemQuantity < 1 {
		errs = append(errs, errors.New("MAX_ITEM_QUANTITY must be at least 1"))
	}
	if len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS must not be empty"))
	}
	if c.CatalogBaseURL == "" {
		errs = append(errs, errors.New("CATALOG_BASE_URL must not be empty"))
	}

	return errors.Join(errs...)
}
