package config

import (
	"fmt"
	"time"

	"github.com/RakeshKhadav/VC/internal/domain"
	pkgconfig "github.com/RakeshKhadav/VC/pkg/config"
	"github.com/RakeshKhadav/VC/pkg/database"
	"github.com/RakeshKhadav/VC/pkg/httpclient"
	"github.com/RakeshKhadav/VC/pkg/tracing"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	defaultJWTSecret = "change-this-to-a-secure-secret"
)

// Config holds all configuration for the review service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"vcreviews-api"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Storage: postgres or memory
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost   string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort   int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser   string        `env:"POSTGRES_USER" envDefault:"vcreviews"`
	PostgresPass   string        `env:"POSTGRES_PASSWORD" envDefault:"vcreviews_secret"`
	PostgresDB     string        `env:"POSTGRES_DB" envDefault:"vcreviews"`
	PostgresSSL    string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns     int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns     int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLife  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdle  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	LogSlowQueryMS int           `env:"LOG_SLOW_QUERY_MS" envDefault:"200"`
	RunMigrations  bool          `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Redis firm cache
	RedisEnabled  bool          `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	FirmCacheTTL  time.Duration `env:"FIRM_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Identity
	JWTSecret    string        `env:"AUTH_JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer    string        `env:"AUTH_ISSUER"`
	IDPBaseURL   string        `env:"IDP_BASE_URL"`
	IDPAPIKey    string        `env:"IDP_API_KEY"`
	IDPTimeout   time.Duration `env:"IDP_TIMEOUT" envDefault:"5s"`
	IDPRetries   int           `env:"IDP_MAX_RETRIES" envDefault:"2"`
	CBMinRequest uint32        `env:"CB_MIN_REQUESTS" envDefault:"5"`
	CBFailRatio  float64       `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBOpenFor    time.Duration `env:"CB_OPEN_TIMEOUT" envDefault:"30s"`

	// Quota
	FreeMonthlyViewLimit int    `env:"FREE_MONTHLY_VIEW_LIMIT" envDefault:"6"`
	UpgradeURL           string `env:"UPGRADE_URL" envDefault:"/upgrade"`

	// Submission throttling
	SubmitRateLimitRPS   float64 `env:"SUBMIT_RATE_LIMIT_RPS" envDefault:"0.2"`
	SubmitRateLimitBurst int     `env:"SUBMIT_RATE_LIMIT_BURST" envDefault:"5"`

	// Tracing
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Debug and CORS
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load vcreviews config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, vars); err != nil {
		return nil, fmt.Errorf("load vcreviews config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}
	if c.FreeMonthlyViewLimit < 1 {
		return fmt.Errorf("FREE_MONTHLY_VIEW_LIMIT must be at least 1, got %d", c.FreeMonthlyViewLimit)
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %g", c.OTelSampleRate)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("AUTH_JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	return nil
}

// QuotaPolicy returns the monthly view policy.
func (c *Config) QuotaPolicy() domain.QuotaPolicy {
	return domain.QuotaPolicy{FreeMonthlyViews: c.FreeMonthlyViewLimit}
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLife,
		MaxConnIdleTime: c.DBMaxConnIdle,
	}
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:         c.RedisHost,
		Port:         c.RedisPort,
		Password:     c.RedisPassword,
		DB:           c.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// IdentityClient returns the HTTP and breaker settings for profile lookups.
func (c *Config) IdentityClient() (httpclient.Config, httpclient.CircuitBreakerConfig) {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.IDPTimeout
	hc.MaxRetries = c.IDPRetries

	cb := httpclient.DefaultCircuitBreakerConfig("identity-provider")
	cb.MinRequests = c.CBMinRequest
	cb.FailureRatio = c.CBFailRatio
	cb.Timeout = c.CBOpenFor
	return hc, cb
}

// Tracing returns the tracer configuration.
func (c *Config) Tracing(version string) tracing.Config {
	return tracing.Config{
		Enabled:        c.OTelEnabled,
		ServiceName:    c.ServiceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTelEndpoint,
		SampleRate:     c.OTelSampleRate,
	}
}
