package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vaughan-dsouza/ledger/internal/utils"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Database
	DBDriver      string
	DatabaseURL   string
	DBMaxOpen     int
	DBMaxIdle     int
	DBMaxLifetime time.Duration

	// Sessions
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	CookieSecure  bool

	// AMQP events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string

	// Logging
	LogLevel  slog.Level
	LogFormat string

	// Reports
	BalanceDays int
	Location    *time.Location

	errs []string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "4000"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),

		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		DBMaxOpen:     getEnvInt("DB_MAX_OPEN", 25),
		DBMaxIdle:     getEnvInt("DB_MAX_IDLE", 25),
		DBMaxLifetime: time.Duration(getEnvInt("DB_MAX_LIFETIME", 300)) * time.Second,

		AccessSecret:  getEnv("ACCESS_SECRET", ""),
		RefreshSecret: getEnv("REFRESH_SECRET", ""),
		CookieSecure:  getEnvBool("COOKIE_SECURE", true),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger.events"),

		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		BalanceDays: getEnvInt("BALANCE_DAYS", 30),
	}

	var err error
	if cfg.AccessTTL, err = utils.ParseTTL(os.Getenv("ACCESS_TTL"), 15*time.Minute); err != nil {
		cfg.errs = append(cfg.errs, fmt.Sprintf("invalid ACCESS_TTL: %v", err))
	}
	if cfg.RefreshTTL, err = utils.ParseTTL(os.Getenv("REFRESH_TTL"), 7*24*time.Hour); err != nil {
		cfg.errs = append(cfg.errs, fmt.Sprintf("invalid REFRESH_TTL: %v", err))
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		cfg.errs = append(cfg.errs, fmt.Sprintf("invalid LOG_LEVEL: %v", err))
	}
	if cfg.Location, err = time.LoadLocation(getEnv("REPORT_TZ", "UTC")); err != nil {
		cfg.errs = append(cfg.errs, fmt.Sprintf("invalid REPORT_TZ: %v", err))
		cfg.Location = time.UTC
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	errors := append([]string(nil), c.errs...)

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errors = append(errors, fmt.Sprintf("invalid DB_DRIVER '%s': must be postgres or sqlite", c.DBDriver))
	}
	if c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL is required")
	}
	if c.DBMaxOpen < 1 {
		errors = append(errors, fmt.Sprintf("invalid DB_MAX_OPEN %d: must be at least 1", c.DBMaxOpen))
	}

	if c.AccessSecret == "" {
		errors = append(errors, "ACCESS_SECRET is required")
	}
	if c.RefreshSecret == "" {
		errors = append(errors, "REFRESH_SECRET is required")
	}
	if c.AccessSecret != "" && c.AccessSecret == c.RefreshSecret {
		errors = append(errors, "ACCESS_SECRET and REFRESH_SECRET must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errors = append(errors, "token TTLs must be positive")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid LOG_FORMAT '%s': must be text or json", c.LogFormat))
	}

	if c.BalanceDays < 1 || c.BalanceDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid BALANCE_DAYS %d: must be between 1 and 366", c.BalanceDays))
	}

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
