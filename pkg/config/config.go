// Package config loads service configuration from environment variables.
// Every service shares the same configuration surface; unused sections are
// simply left at their defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gurulk/platform/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Service is the short name of the running service, e.g. "authservice"
	Service string

	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	AuthClient    AuthClientConfig
	SMTP          SMTPConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// PolicyFile optionally overrides the built-in route policy table
	PolicyFile string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration. Redis backs the remote token
// validation cache and is optional.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds token signing configuration. Only the auth service
// signs tokens; the other services validate remotely.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// AuthClientConfig holds remote token validation configuration
type AuthClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	CacheSize      int
	CacheTTL       time.Duration
}

// SMTPConfig holds outbound mail configuration for the notification service
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables for the named
// service and validates it.
func LoadConfig(service string) (*Config, error) {
	cfg := &Config{
		Service: service,
		Server: ServerConfig{
			Host:            getEnv("GURULK_HOST", "0.0.0.0"),
			Port:            getEnv("GURULK_PORT", "8080"),
			ReadTimeout:     getEnvDuration("GURULK_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("GURULK_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("GURULK_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("GURULK_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  splitNonEmpty(getEnv("GURULK_ALLOWED_ORIGINS", "*")),
			PolicyFile:      getEnv("GURULK_POLICY_FILE", ""),
		},
		Database: DatabaseConfig{
			URL:             getEnv("GURULK_POSTGRES_URL", ""),
			MaxOpenConns:    getEnvInt("GURULK_POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("GURULK_POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("GURULK_POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("GURULK_REDIS_ENABLED", false),
			Addr:     getEnv("GURULK_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("GURULK_REDIS_PASSWORD", ""),
			DB:       getEnvInt("GURULK_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("GURULK_JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("GURULK_TOKEN_TTL", time.Hour),
		},
		AuthClient: AuthClientConfig{
			BaseURL:        getEnv("GURULK_AUTH_SERVICE_URL", "http://localhost:8081"),
			RequestTimeout: getEnvDuration("GURULK_AUTH_CLIENT_TIMEOUT", 5*time.Second),
			CacheSize:      getEnvInt("GURULK_AUTH_CACHE_SIZE", 1024),
			CacheTTL:       getEnvDuration("GURULK_AUTH_CACHE_TTL", 30*time.Second),
		},
		SMTP: SMTPConfig{
			Enabled:  getEnvBool("GURULK_SMTP_ENABLED", false),
			Host:     getEnv("GURULK_SMTP_HOST", "localhost"),
			Port:     getEnvInt("GURULK_SMTP_PORT", 587),
			Username: getEnv("GURULK_SMTP_USERNAME", ""),
			Password: getEnv("GURULK_SMTP_PASSWORD", ""),
			From:     getEnv("GURULK_SMTP_FROM", "no-reply@gurulk.io"),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("GURULK_LOG_LEVEL", "info")),
			OTelEnabled:        getEnvBool("GURULK_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("GURULK_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("GURULK_OTEL_SERVICE_NAME", service),
			OTelServiceVersion: getEnv("GURULK_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("GURULK_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("service name is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	// The auth service signs tokens and must carry a secret of useful
	// length. HMAC keys shorter than the hash output weaken the MAC.
	if c.Service == "authservice" {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT secret is required for the auth service")
		}
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT secret must be at least 32 bytes")
		}
		if c.Auth.TokenTTL <= 0 {
			return fmt.Errorf("token TTL must be positive")
		}
	} else {
		if c.AuthClient.BaseURL == "" {
			return fmt.Errorf("auth service URL is required")
		}
	}

	if c.Service == "notificationservice" && c.SMTP.Enabled {
		if c.SMTP.Host == "" || c.SMTP.Port == 0 {
			return fmt.Errorf("SMTP host and port are required when SMTP is enabled")
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Addr returns the host:port the HTTP server binds to
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func splitNonEmpty(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
