package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	CartBackendRedis  = "redis"
	CartBackendSQL    = "sql"
	CartBackendMemory = "memory"
	CartBackendBolt   = "bolt"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

// Environment variable names used in tests and error messages.
const (
	EnvAppEnv          = "STOREFRONT_APP_ENV"
	EnvPort            = "STOREFRONT_APP_PORT"
	EnvAirtableToken   = "STOREFRONT_AIRTABLE_TOKEN"
	EnvAirtableBaseID  = "STOREFRONT_AIRTABLE_BASE_ID"
	EnvArticlesTable   = "STOREFRONT_AIRTABLE_ARTICLES_TABLE"
	EnvOrdersTable     = "STOREFRONT_AIRTABLE_ORDERS_TABLE"
	EnvCartBackend     = "STOREFRONT_CART_BACKEND"
	EnvCartBoltPath    = "STOREFRONT_CART_BOLT_PATH"
	EnvRedisURL        = "STOREFRONT_REDIS_URL"
	EnvRedisAddr       = "STOREFRONT_REDIS_ADDR"
	EnvDBDSN           = "STOREFRONT_DB_DSN"
	EnvDBDriver        = "STOREFRONT_DB_DRIVER"
	EnvRemoteTimeout   = "STOREFRONT_REMOTE_TIMEOUT"
	EnvCompensate      = "STOREFRONT_COMPENSATE_ON_FAILURE"
	EnvCheckoutLimit   = "STOREFRONT_RATE_LIMIT_CHECKOUT_SESSION_LIMIT"
	EnvAllowedOrigins  = "STOREFRONT_CORS_ALLOWED_ORIGINS"
	EnvAirtableBaseURL = "STOREFRONT_AIRTABLE_BASE_URL"
)

type Config struct {
	App       AppConfig
	Airtable  AirtableConfig
	Checkout  CheckoutConfig
	Cart      CartConfig
	Redis     RedisConfig
	DB        DBConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
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

// LoadDatabase reads only the app and database settings, for tooling that
// never talks to the remote store.
func LoadDatabase() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg.App); err != nil {
		return nil, fmt.Errorf("parsing app config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.DB); err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`

	ShutdownTimeout time.Duration `envconfig:"STOREFRONT_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AirtableConfig points at the spreadsheet-backed record store holding the
// articles and orders tables.
type AirtableConfig struct {
	BaseURL       string        `envconfig:"STOREFRONT_AIRTABLE_BASE_URL" default:"https://api.airtable.com/v0"`
	Token         string        `envconfig:"STOREFRONT_AIRTABLE_TOKEN" required:"true"`
	BaseID        string        `envconfig:"STOREFRONT_AIRTABLE_BASE_ID" required:"true"`
	ArticlesTable string        `envconfig:"STOREFRONT_AIRTABLE_ARTICLES_TABLE" default:"Articulos"`
	OrdersTable   string        `envconfig:"STOREFRONT_AIRTABLE_ORDERS_TABLE" default:"Ordenes"`
	Timeout       time.Duration `envconfig:"STOREFRONT_REMOTE_TIMEOUT" default:"10s"`
}

type CheckoutConfig struct {
	CompensateOnFailure bool   `envconfig:"STOREFRONT_COMPENSATE_ON_FAILURE" default:"false"`
	PlaceholderImage    string `envconfig:"STOREFRONT_PLACEHOLDER_IMAGE" default:"./img/placeholder.png"`
}

type CartConfig struct {
	Backend string        `envconfig:"STOREFRONT_CART_BACKEND" default:"redis"`
	TTL     time.Duration `envconfig:"STOREFRONT_CART_TTL" default:"720h"`
	// BoltPath is the database file used by the bolt backend.
	BoltPath string `envconfig:"STOREFRONT_CART_BOLT_PATH" default:"data/carts.db"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RateLimitConfig struct {
	CheckoutWindow       time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutSessionLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_SESSION_LIMIT" default:"5"`
	CheckoutIPLimit      int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"30"`
	CheckoutEmailLimit   int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_EMAIL_LIMIT" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:5500,http://127.0.0.1:5500"`
}

func (c *Config) validate() error {
	c.Cart.Backend = strings.ToLower(strings.TrimSpace(c.Cart.Backend))
	switch c.Cart.Backend {
	case CartBackendRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("%s=%s requires %s or %s", EnvCartBackend, CartBackendRedis, EnvRedisURL, EnvRedisAddr)
		}
	case CartBackendSQL:
		if err := c.DB.validate(); err != nil {
			return err
		}
	case CartBackendBolt:
		if strings.TrimSpace(c.Cart.BoltPath) == "" {
			return fmt.Errorf("%s is required when the cart backend is %s", EnvCartBoltPath, CartBackendBolt)
		}
	case CartBackendMemory:
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s, %s (got %q)", EnvCartBackend, CartBackendRedis, CartBackendSQL, CartBackendBolt, CartBackendMemory, c.Cart.Backend)
	}

	if _, err := url.ParseRequestURI(c.Airtable.BaseURL); err != nil {
		return fmt.Errorf("%s is not a valid url: %w", EnvAirtableBaseURL, err)
	}
	if c.Airtable.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvRemoteTimeout)
	}
	return nil
}

func (db *DBConfig) validate() error {
	db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
	if db.Driver != DBDriverPostgres && db.Driver != DBDriverSQLite {
		return fmt.Errorf("%s must be %s or %s (got %q)", EnvDBDriver, DBDriverPostgres, DBDriverSQLite, db.Driver)
	}
	if strings.TrimSpace(db.DSN) == "" {
		return fmt.Errorf("%s is required when the cart backend is %s", EnvDBDSN, CartBackendSQL)
	}
	return nil
}
