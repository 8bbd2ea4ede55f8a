package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	SessionBackendSQLite = "sqlite"
	SessionBackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port string
	// TrustedProxies are CIDRs, beyond loopback and private ranges, whose
	// forwarding headers are believed.
	TrustedProxies []string

	// Expense API
	APIBaseURL  string
	APIOrigin   string
	HTTPTimeout time.Duration

	// Sessions
	SessionBackend   string
	SessionDBPath    string
	SessionRetention time.Duration

	// Dashboard
	EnableCreateExpense bool
	DefaultLocale       string
	ClientCacheSize     int
	ClientIdleTTL       time.Duration
	AuthRateLimit       int

	// AMQP
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		APIBaseURL:  getEnv("API_BASE_URL", "/api"),
		APIOrigin:   getEnv("API_ORIGIN", "http://localhost:8000"),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		SessionBackend:   getEnv("SESSION_BACKEND", SessionBackendSQLite),
		SessionDBPath:    getEnv("SESSION_DB_PATH", "./data/session.db"),
		SessionRetention: getEnvDuration("SESSION_RETENTION", 7*24*time.Hour),

		EnableCreateExpense: getEnvBool("ENABLE_CREATE_EXPENSE", false),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "en"),
		ClientCacheSize:     getEnvInt("CLIENT_CACHE_SIZE", 1000),
		ClientIdleTTL:       getEnvDuration("CLIENT_IDLE_TTL", 30*time.Minute),
		AuthRateLimit:       getEnvInt("AUTH_RATE_LIMIT", 20),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "expensedash"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "dashboard.events"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	// A relative API base needs an absolute origin to resolve against
	if base, err := url.Parse(strings.TrimSpace(c.APIBaseURL)); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if base.IsAbs() {
		if base.Scheme != "http" && base.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", base.Scheme))
		}
	} else if origin, err := url.Parse(strings.TrimSpace(c.APIOrigin)); err != nil || (origin.Scheme != "http" && origin.Scheme != "https") || origin.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API origin '%s': must be an absolute URL when API_BASE_URL is relative", c.APIOrigin))
	}

	if c.HTTPTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must not be negative", c.HTTPTimeout))
	}

	// Validate session backend
	validBackends := []string{SessionBackendMemory, SessionBackendSQLite}
	if !slices.Contains(validBackends, c.SessionBackend) {
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of %v", c.SessionBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.SessionBackend == SessionBackendSQLite {
		if c.SessionDBPath == "" {
			errors = append(errors, "session database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SessionDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create session database directory '%s': %v", dir, err))
					}
				}
			}
		}
		if c.SessionRetention < time.Hour {
			errors = append(errors, fmt.Sprintf("invalid session retention %v: must be at least 1 hour", c.SessionRetention))
		}
	}

	if _, err := language.Parse(c.DefaultLocale); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default locale '%s': %v", c.DefaultLocale, err))
	}

	if c.ClientCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid client cache size %d: must be at least 1", c.ClientCacheSize))
	}
	if c.ClientIdleTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid client idle TTL %v: must be at least 1 minute", c.ClientIdleTTL))
	}
	if c.AuthRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid auth rate limit %d: must be at least 1", c.AuthRateLimit))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
