package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Timeout defaults and upper bounds, in seconds.
const (
	DefaultRequestTimeout        = 30
	DefaultDatabaseQueryTimeout  = 10
	DefaultRedisOperationTimeout = 5
	MaxRequestTimeout            = 300
	MaxDatabaseQueryTimeout      = 120
	MaxRedisOperationTimeout     = 60
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	NATS          NATSConfig
	Sentry        SentryConfig
	Tracing       TracingConfig
	Timeout       TimeoutConfig
	RateLimit     RateLimitConfig
	Resilience    ResilienceConfig
	Notifications NotificationsConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	Version      string
	LogLevel     string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // comma separated
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	MinConns       int
	MigrationsPath string
	AutoMigrate    bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	// RideCacheTTLSeconds bounds how long a ride read may be served from cache.
	RideCacheTTLSeconds int
	// AcceptLockTTLSeconds bounds the per-ride accept lock.
	AcceptLockTTLSeconds int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// NATSConfig configures the JetStream event bus.
type NATSConfig struct {
	Enabled    bool
	URL        string
	StreamName string
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	DSN              string
	TracesSampleRate float64
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
}

// TimeoutConfig holds timeouts in seconds.
type TimeoutConfig struct {
	DefaultRequestTimeout int
	DatabaseQueryTimeout  int
	RedisOperationTimeout int
	// RouteOverrides maps "METHOD:/path" to a request timeout.
	RouteOverrides map[string]int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool
	WindowSeconds  int
	DefaultLimit   int
	AnonymousLimit int
	RedisPrefix    string
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-service breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream service
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// NotificationsConfig tunes the outbound ride event dispatcher.
type NotificationsConfig struct {
	QueueSize      int
	PublishTimeout int // seconds
	ListLimit      int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			Version:      getEnv("SERVICE_VERSION", "1.0.0"),
			LogLevel:     getEnv("LOG_LEVEL", ""),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "ridehailing"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:       getEnvAsInt("DB_MIN_CONNS", 5),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "file://db/migrations"),
			AutoMigrate:    getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Enabled:              getEnvAsBool("REDIS_ENABLED", true),
			Host:                 getEnv("REDIS_HOST", "localhost"),
			Port:                 getEnv("REDIS_PORT", "6379"),
			Password:             getEnv("REDIS_PASSWORD", ""),
			DB:                   getEnvAsInt("REDIS_DB", 0),
			RideCacheTTLSeconds:  getEnvAsInt("REDIS_RIDE_CACHE_TTL", 30),
			AcceptLockTTLSeconds: getEnvAsInt("REDIS_ACCEPT_LOCK_TTL", 5),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-me-in-production"),
		},
		NATS: NATSConfig{
			Enabled:    getEnvAsBool("NATS_ENABLED", true),
			URL:        getEnv("NATS_URL", "nats://localhost:4222"),
			StreamName: getEnv("NATS_STREAM", "RIDES"),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			TracesSampleRate: getEnvAsFloat("SENTRY_TRACES_SAMPLE_RATE", 0.1),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("TRACING_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Timeout: TimeoutConfig{
			DefaultRequestTimeout: getEnvAsInt("DEFAULT_REQUEST_TIMEOUT", DefaultRequestTimeout),
			DatabaseQueryTimeout:  getEnvAsInt("DB_QUERY_TIMEOUT", DefaultDatabaseQueryTimeout),
			RedisOperationTimeout: getEnvAsInt("REDIS_OPERATION_TIMEOUT", DefaultRedisOperationTimeout),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", false),
			WindowSeconds:  getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			DefaultLimit:   getEnvAsInt("RATE_LIMIT_DEFAULT_LIMIT", 120),
			AnonymousLimit: getEnvAsInt("RATE_LIMIT_ANON_LIMIT", 60),
			RedisPrefix:    getEnv("RATE_LIMIT_REDIS_PREFIX", "rate-limit"),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
		Notifications: NotificationsConfig{
			QueueSize:      getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			PublishTimeout: getEnvAsInt("NOTIFY_PUBLISH_TIMEOUT", 5),
			ListLimit:      getEnvAsInt("NOTIFY_LIST_LIMIT", 50),
		},
	}

	if overrides := getEnv("ROUTE_TIMEOUTS", ""); overrides != "" {
		var routes map[string]int
		if err := json.Unmarshal([]byte(overrides), &routes); err != nil {
			return nil, fmt.Errorf("invalid ROUTE_TIMEOUTS value: %w", err)
		}
		cfg.Timeout.RouteOverrides = routes
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if err := cfg.Timeout.validate(); err != nil {
		return nil, err
	}

	if cfg.Notifications.QueueSize <= 0 {
		cfg.Notifications.QueueSize = 256
	}
	if cfg.Notifications.ListLimit <= 0 {
		cfg.Notifications.ListLimit = 50
	}

	return cfg, nil
}

func (t *TimeoutConfig) validate() error {
	checks := []struct {
		env   string
		value *int
		def   int
		max   int
	}{
		{"DEFAULT_REQUEST_TIMEOUT", &t.DefaultRequestTimeout, DefaultRequestTimeout, MaxRequestTimeout},
		{"DB_QUERY_TIMEOUT", &t.DatabaseQueryTimeout, DefaultDatabaseQueryTimeout, MaxDatabaseQueryTimeout},
		{"REDIS_OPERATION_TIMEOUT", &t.RedisOperationTimeout, DefaultRedisOperationTimeout, MaxRedisOperationTimeout},
	}
	for _, c := range checks {
		if *c.value <= 0 {
			*c.value = c.def
		}
		if *c.value > c.max {
			return fmt.Errorf("%s value %d exceeds maximum of %d seconds", c.env, *c.value, c.max)
		}
	}
	for route, seconds := range t.RouteOverrides {
		if seconds <= 0 || seconds > MaxRequestTimeout {
			return fmt.Errorf("route timeout for %s must be between 1 and %d seconds", route, MaxRequestTimeout)
		}
	}
	return nil
}

// RequestTimeout returns the default request timeout.
func (t TimeoutConfig) RequestTimeout() time.Duration {
	return time.Duration(t.DefaultRequestTimeout) * time.Second
}

// DatabaseTimeout returns the per-query timeout.
func (t TimeoutConfig) DatabaseTimeout() time.Duration {
	return time.Duration(t.DatabaseQueryTimeout) * time.Second
}

// TimeoutForRoute returns the override for "METHOD:/path" or the default.
func (t TimeoutConfig) TimeoutForRoute(method, path string) time.Duration {
	if seconds, ok := t.RouteOverrides[strings.ToUpper(method)+":"+path]; ok {
		return time.Duration(seconds) * time.Second
	}
	return t.RequestTimeout()
}

// SettingsFor returns effective breaker settings for a specific upstream service name
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if override, ok := c.ServiceOverrides[service]; ok {
		if override.FailureThreshold > 0 {
			settings.FailureThreshold = override.FailureThreshold
		}
		if override.SuccessThreshold > 0 {
			settings.SuccessThreshold = override.SuccessThreshold
		}
		if override.TimeoutSeconds > 0 {
			settings.TimeoutSeconds = override.TimeoutSeconds
		}
		if override.IntervalSeconds > 0 {
			settings.IntervalSeconds = override.IntervalSeconds
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// DSN returns the libpq style connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the postgres:// form used by the migrator.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Window returns the configured rate limit window duration
func (c RateLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
