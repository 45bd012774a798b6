package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/config"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/database"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/httpclient"
)

// Config holds all configuration for the order service. It is built once at
// start and passed to every component; nothing reads the environment later.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:""`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"postgres"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"1"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
	SlowQueryThresholdMs  int   `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Redis backs the optional Idempotency-Key store.
	RedisEnabled          bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost             string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort             int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword         string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB               int    `env:"REDIS_DB" envDefault:"0"`
	IdempotencyTTLMinutes int    `env:"IDEMPOTENCY_TTL_MINUTES" envDefault:"1440"`

	// Kafka carries the order.created event.
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Bearer token verification.
	AuthJWTSecret string `env:"AUTH_JWT_SECRET,required"`
	AuthJWTIssuer string `env:"AUTH_JWT_ISSUER" envDefault:""`

	// Transactional email. An empty API key disables notifications.
	LoopsAPIKey             string `env:"LOOPS_API_KEY" envDefault:""`
	LoopsAPIURL             string `env:"LOOPS_API_URL" envDefault:"https://app.loops.so/api/v1/transactional"`
	LoopsCustomerTemplateID string `env:"LOOPS_CUSTOMER_TEMPLATE_ID" envDefault:"cm_order_confirmation"`
	LoopsAdminTemplateID    string `env:"LOOPS_ADMIN_TEMPLATE_ID" envDefault:"cm_admin_new_order"`
	AdminNotificationEmail  string `env:"ADMIN_NOTIFICATION_EMAIL" envDefault:"orders@mywaterquality.ca"`

	Currency string `env:"CURRENCY" envDefault:"CAD"`

	// Workflow deadlines, milliseconds.
	RequestTimeoutMs      int `env:"REQUEST_TIMEOUT_MS" envDefault:"25000"`
	OrderInsertTimeoutMs  int `env:"ORDER_INSERT_TIMEOUT_MS" envDefault:"10000"`
	OrderItemsTimeoutMs   int `env:"ORDER_ITEMS_TIMEOUT_MS" envDefault:"10000"`
	OrderMaxAttempts      int `env:"ORDER_MAX_ATTEMPTS" envDefault:"2"`
	StepTimeoutMs         int `env:"STEP_TIMEOUT_MS" envDefault:"8000"`
	NotificationTimeoutMs int `env:"NOTIFICATION_TIMEOUT_MS" envDefault:"10000"`
	ShutdownTimeoutSecs   int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"15"`

	// Circuit breaker for the email API.
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom reads configuration from environ, or the process environment
// when environ is nil.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environ); err != nil {
		return nil, fmt.Errorf("load order service config: %w", err)
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
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if strings.TrimSpace(c.AuthJWTSecret) == "" {
		return fmt.Errorf("AUTH_JWT_SECRET must not be blank")
	}
	if c.OrderMaxAttempts < 1 {
		return fmt.Errorf("ORDER_MAX_ATTEMPTS must be at least 1, got %d", c.OrderMaxAttempts)
	}
	for name, ms := range map[string]int{
		"REQUEST_TIMEOUT_MS":      c.RequestTimeoutMs,
		"ORDER_INSERT_TIMEOUT_MS": c.OrderInsertTimeoutMs,
		"ORDER_ITEMS_TIMEOUT_MS":  c.OrderItemsTimeoutMs,
		"STEP_TIMEOUT_MS":         c.StepTimeoutMs,
		"NOTIFICATION_TIMEOUT_MS": c.NotificationTimeoutMs,
	} {
		if ms <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, ms)
		}
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.IdempotencyTTLMinutes <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL_MINUTES must be positive, got %d", c.IdempotencyTTLMinutes)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.LoopsAPIKey != "" {
		if _, err := url.ParseRequestURI(c.LoopsAPIURL); err != nil {
			return fmt.Errorf("invalid LOOPS_API_URL %q: %w", c.LoopsAPIURL, err)
		}
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be a 3-letter ISO code, got %q", c.Currency)
	}
	return nil
}

// NotificationsEnabled reports whether an email API key is configured.
func (c *Config) NotificationsEnabled() bool {
	return c.LoopsAPIKey != ""
}

// Postgres returns the connection pool settings.
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
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// CircuitBreaker returns the email API breaker settings.
func (c *Config) CircuitBreaker(name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBInterval) * time.Second,
		Timeout:      time.Duration(c.CBTimeout) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}

// Millis converts a millisecond setting to a time.Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
