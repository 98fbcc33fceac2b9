// Package config provides centralized configuration for the profile service
// with validation, type safety, and clear documentation for SRE/DevOps teams.
//
// Configuration Sources (12-factor app principles):
//  1. Default values (hardcoded)
//  2. .env file (local development via godotenv)
//  3. Environment variables (Kubernetes runtime)
//
// Usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is only acceptable outside production.
const DefaultJWTSecret = "dev-insecure-secret-change-me"

// Storage drivers understood by DatabaseConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the service
type Config struct {
	Service         ServiceConfig   // Service-specific settings (port, name, version)
	Tracing         TracingConfig   // OpenTelemetry/Tempo configuration
	Profiling       ProfilingConfig // Pyroscope continuous profiling
	Logging         LoggingConfig   // Structured logging (Zap)
	Metrics         MetricsConfig   // Prometheus metrics
	Database        DatabaseConfig  // Identity/profile store
	JWT             JWTConfig       // Session token signing
	Media           MediaConfig     // Profile photo storage
	Redis           RedisConfig     // Refresh token denylist + login rate limiting
	CORS            CORSConfig      // Browser frontend access
	ShutdownTimeout int             // Graceful shutdown timeout in seconds - from SHUTDOWN_TIMEOUT env (default: 10)
	// ReadinessDrainDelay: delay after failing readiness before shutting down the HTTP server.
	// From READINESS_DRAIN_DELAY env (default: 5s, max: 30s).
	ReadinessDrainDelay int
}

// ServiceConfig defines basic service configuration
type ServiceConfig struct {
	Name     string // Service name - from SERVICE_NAME env
	Port     string // HTTP server port (default: "8080") - from PORT env
	Version  string // Service version reported by /status - from VERSION env
	Env      string // Environment (dev/staging/production) - from ENV env
	BasePath string // API mount point - from API_BASE_PATH env (default: "/usuarios/api")
}

// TracingConfig defines OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled            bool    // from TRACING_ENABLED env (default: true)
	Endpoint           string  // OTel Collector endpoint - from OTEL_COLLECTOR_ENDPOINT env
	SampleRate         float64 // Trace sampling rate (0.0-1.0) - from OTEL_SAMPLE_RATE env
	ServiceName        string  // Service name for traces (defaults to ServiceConfig.Name)
	MaxExportBatchSize int     // Max spans per batch (default: 512)
}

// ProfilingConfig defines Pyroscope continuous profiling configuration
type ProfilingConfig struct {
	Enabled     bool   // from PROFILING_ENABLED env (default: false)
	Endpoint    string // Pyroscope endpoint - from PYROSCOPE_ENDPOINT env
	ServiceName string // Service name for profiling (defaults to ServiceConfig.Name)
}

// LoggingConfig defines structured logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error (default: "info") - from LOG_LEVEL env
	Format string // json, console (default: "json") - from LOG_FORMAT env
}

// MetricsConfig defines Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   // from METRICS_ENABLED env (default: true)
	Path    string // Metrics endpoint path (default: "/metrics") - from METRICS_PATH env
}

// DatabaseConfig defines the identity/profile store configuration.
// PostgreSQL uses separate environment variables (not a DATABASE_URL string).
type DatabaseConfig struct {
	Driver           string        // postgres or sqlite - from DB_DRIVER env (default: "postgres")
	Host             string        // from DB_HOST env
	Port             string        // from DB_PORT env (default: "5432")
	Name             string        // from DB_NAME env
	User             string        // from DB_USER env
	Password         string        // from DB_PASSWORD env
	SSLMode          string        // from DB_SSLMODE env (default: "disable")
	MaxConnections   int           // from DB_POOL_MAX_CONNECTIONS env (default: 25)
	StatementTimeout time.Duration // server-side statement timeout - from DB_STATEMENT_TIMEOUT env (default: 5s)
	AutoMigrate      bool          // apply the bundled schema at startup - from DB_AUTO_MIGRATE env
	SQLitePath       string        // database file when Driver=sqlite - from DB_SQLITE_PATH env
}

// BuildDSN constructs PostgreSQL connection string from config
func (c *DatabaseConfig) BuildDSN() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConnections)
}

// JWTConfig defines session token signing.
type JWTConfig struct {
	Secret          string        // HMAC key - from JWT_SECRET env
	Issuer          string        // iss claim - from JWT_ISSUER env (default: SERVICE_NAME)
	AccessTokenTTL  time.Duration // from JWT_ACCESS_TTL env (default: 5m)
	RefreshTokenTTL time.Duration // from JWT_REFRESH_TTL env (default: 24h)
}

// MediaConfig defines where profile photos live and how they are exposed.
type MediaConfig struct {
	Root           string // directory holding uploaded files - from MEDIA_ROOT env (default: "./media")
	URLPrefix      string // public prefix for stored files - from MEDIA_URL_PREFIX env (default: "/media/")
	Serve          bool   // mount Root under URLPrefix - from MEDIA_SERVE env (default: true)
	MaxUploadBytes int64  // upload size cap - from MEDIA_MAX_UPLOAD_BYTES env (default: 5 MiB)
	MaxDimension   int    // downscale JPEG/PNG above this many pixels per side, 0 disables - from MEDIA_MAX_DIMENSION env
}

// RedisConfig defines the optional Redis used for token revocation and rate limiting.
// Both features are disabled when Addrs is empty.
type RedisConfig struct {
	Addrs              []string      // comma separated - from REDIS_ADDRS env
	Password           string        // from REDIS_PASSWORD env
	Cluster            bool          // from REDIS_CLUSTER env
	LoginRateLimit     int           // attempts per window - from LOGIN_RATE_LIMIT env (default: 10)
	LoginRateWindow    time.Duration // from LOGIN_RATE_WINDOW env (default: 1m)
	LoginBlockDuration time.Duration // from LOGIN_BLOCK_DURATION env (default: 5m)
}

// Enabled reports whether a Redis endpoint is configured.
func (c RedisConfig) Enabled() bool {
	return len(c.Addrs) > 0
}

// CORSConfig defines browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string // comma separated - from CORS_ALLOWED_ORIGINS env (default: "*")
}

// Load reads configuration from environment variables with defaults
// It automatically loads .env file if present (for local development)
//
// Priority: .env file < environment variables
func Load() *Config {
	// godotenv.Load() fails silently if .env doesn't exist
	_ = godotenv.Load()

	serviceName := getEnv("SERVICE_NAME", "profile")

	return &Config{
		Service: ServiceConfig{
			Name:     serviceName,
			Port:     getEnv("PORT", "8080"),
			Version:  getEnv("VERSION", "1.0.0"),
			Env:      getEnv("ENV", "development"),
			BasePath: getEnv("API_BASE_PATH", "/usuarios/api"),
		},
		Tracing: TracingConfig{
			Enabled:            getEnvBool("TRACING_ENABLED", false),
			Endpoint:           getEnv("OTEL_COLLECTOR_ENDPOINT", "otel-collector-opentelemetry-collector.monitoring.svc.cluster.local:4318"),
			SampleRate:         getEnvFloat("OTEL_SAMPLE_RATE", 0.1),
			ServiceName:        serviceName,
			MaxExportBatchSize: getEnvInt("OTEL_BATCH_SIZE", 512),
		},
		Profiling: ProfilingConfig{
			Enabled:     getEnvBool("PROFILING_ENABLED", false),
			Endpoint:    getEnv("PYROSCOPE_ENDPOINT", "http://pyroscope.monitoring.svc.cluster.local:4040"),
			ServiceName: serviceName,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:             getEnv("DB_HOST", ""),
			Port:             getEnv("DB_PORT", "5432"),
			Name:             getEnv("DB_NAME", ""),
			User:             getEnv("DB_USER", ""),
			Password:         getEnv("DB_PASSWORD", ""),
			SSLMode:          getEnv("DB_SSLMODE", "disable"),
			MaxConnections:   getEnvInt("DB_POOL_MAX_CONNECTIONS", 25),
			StatementTimeout: getEnvDuration("DB_STATEMENT_TIMEOUT", 5*time.Second),
			AutoMigrate:      getEnvBool("DB_AUTO_MIGRATE", false),
			SQLitePath:       getEnv("DB_SQLITE_PATH", "profile.db"),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", DefaultJWTSecret),
			Issuer:          getEnv("JWT_ISSUER", serviceName),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TTL", 5*time.Minute),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TTL", 24*time.Hour),
		},
		Media: MediaConfig{
			Root:           getEnv("MEDIA_ROOT", "./media"),
			URLPrefix:      getEnv("MEDIA_URL_PREFIX", "/media/"),
			Serve:          getEnvBool("MEDIA_SERVE", true),
			MaxUploadBytes: int64(getEnvInt("MEDIA_MAX_UPLOAD_BYTES", 5*1024*1024)),
			MaxDimension:   getEnvInt("MEDIA_MAX_DIMENSION", 2048),
		},
		Redis: RedisConfig{
			Addrs:              getEnvList("REDIS_ADDRS", nil),
			Password:           getEnv("REDIS_PASSWORD", ""),
			Cluster:            getEnvBool("REDIS_CLUSTER", false),
			LoginRateLimit:     getEnvInt("LOGIN_RATE_LIMIT", 10),
			LoginRateWindow:    getEnvDuration("LOGIN_RATE_WINDOW", time.Minute),
			LoginBlockDuration: getEnvDuration("LOGIN_BLOCK_DURATION", 5*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		ShutdownTimeout:     getEnvDurationSeconds("SHUTDOWN_TIMEOUT", 10),
		ReadinessDrainDelay: getEnvDurationSecondsWithMax("READINESS_DRAIN_DELAY", 5, 30),
	}
}

// Validate performs comprehensive validation of all configuration fields
// Returns detailed error messages for SRE/DevOps troubleshooting
func (c *Config) Validate() error {
	var errors []string

	if c.Service.Name == "" {
		errors = append(errors, "SERVICE_NAME is required (e.g., 'profile')")
	}
	if _, err := strconv.Atoi(c.Service.Port); err != nil {
		errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Service.Port))
	}
	if !strings.HasPrefix(c.Service.BasePath, "/") {
		errors = append(errors, fmt.Sprintf("API_BASE_PATH must start with '/', got: %s", c.Service.BasePath))
	}
	validEnvs := []string{"development", "dev", "staging", "stage", "production", "prod", "test"}
	if !contains(validEnvs, c.Service.Env) {
		errors = append(errors, fmt.Sprintf("ENV must be one of %v, got: %s", validEnvs, c.Service.Env))
	}

	if c.Tracing.Enabled {
		if c.Tracing.Endpoint == "" {
			errors = append(errors, "OTEL_COLLECTOR_ENDPOINT is required when tracing is enabled")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
			errors = append(errors, fmt.Sprintf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got: %.2f", c.Tracing.SampleRate))
		}
	}

	if c.Profiling.Enabled && c.Profiling.Endpoint == "" {
		errors = append(errors, "PYROSCOPE_ENDPOINT is required when profiling is enabled")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logging.Level) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of %v, got: %s", validLogLevels, c.Logging.Level))
	}
	validLogFormats := []string{"json", "console"}
	if !contains(validLogFormats, c.Logging.Format) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of %v, got: %s", validLogFormats, c.Logging.Format))
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			errors = append(errors, "DB_HOST is required when DB_DRIVER=postgres")
		}
		if c.Database.Name == "" {
			errors = append(errors, "DB_NAME is required when DB_DRIVER=postgres")
		}
		if c.Database.User == "" {
			errors = append(errors, "DB_USER is required when DB_DRIVER=postgres")
		}
		if c.Database.Password == "" {
			errors = append(errors, "DB_PASSWORD is required when DB_DRIVER=postgres")
		}
		if _, err := strconv.Atoi(c.Database.Port); err != nil {
			errors = append(errors, fmt.Sprintf("DB_PORT must be a valid number, got: %s", c.Database.Port))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Database.SQLitePath) == "" {
			errors = append(errors, "DB_SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	default:
		errors = append(errors, fmt.Sprintf("DB_DRIVER must be one of [%s %s], got: %s", DriverPostgres, DriverSQLite, c.Database.Driver))
	}

	if c.JWT.Secret == "" {
		errors = append(errors, "JWT_SECRET is required")
	} else if c.IsProduction() && (c.JWT.Secret == DefaultJWTSecret || len(c.JWT.Secret) < 32) {
		errors = append(errors, "JWT_SECRET must be set to a random value of at least 32 bytes in production")
	}
	if c.JWT.AccessTokenTTL <= 0 || c.JWT.RefreshTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive durations")
	} else if c.JWT.RefreshTokenTTL <= c.JWT.AccessTokenTTL {
		errors = append(errors, "JWT_REFRESH_TTL must be longer than JWT_ACCESS_TTL")
	}

	if c.Media.Root == "" {
		errors = append(errors, "MEDIA_ROOT is required")
	}
	if !strings.HasPrefix(c.Media.URLPrefix, "/") {
		errors = append(errors, fmt.Sprintf("MEDIA_URL_PREFIX must start with '/', got: %s", c.Media.URLPrefix))
	}
	if c.Media.MaxUploadBytes <= 0 {
		errors = append(errors, "MEDIA_MAX_UPLOAD_BYTES must be positive")
	}
	if c.Media.MaxDimension < 0 {
		errors = append(errors, "MEDIA_MAX_DIMENSION must not be negative")
	}

	if c.Redis.Enabled() && c.Redis.LoginRateLimit <= 0 {
		errors = append(errors, "LOGIN_RATE_LIMIT must be positive when REDIS_ADDRS is set")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Service.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Service.Env)
	return env == "production" || env == "prod"
}

// GetShutdownTimeoutDuration returns shutdown timeout as time.Duration
func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

// GetReadinessDrainDelayDuration returns readiness drain delay as time.Duration.
func (c *Config) GetReadinessDrainDelayDuration() time.Duration {
	return time.Duration(c.ReadinessDrainDelay) * time.Second
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool accepts "true", "1", "yes" for true; anything else set is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	value = strings.ToLower(value)
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvDuration reads a Go duration ("30s", "15m"); invalid values fall back to the default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvDurationSeconds reads a duration env var and returns whole seconds (max 60).
// Returns default on invalid values (silent fallback for startup safety)
func getEnvDurationSeconds(key string, defaultValueSeconds int) int {
	return getEnvDurationSecondsWithMax(key, defaultValueSeconds, 60)
}

func getEnvDurationSecondsWithMax(key string, defaultValueSeconds int, maxSeconds int) int {
	timeoutStr := os.Getenv(key)
	if timeoutStr == "" {
		return defaultValueSeconds
	}

	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return defaultValueSeconds
	}

	seconds := int(timeout.Seconds())
	if seconds <= 0 || seconds > maxSeconds {
		return defaultValueSeconds
	}

	return seconds
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
