package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	DatabaseURL string
	MaxConns    int32

	// HTTP server
	Port        string
	AuthUser    string
	AuthPass    string
	CORSOrigins []string

	// Inventory
	SoldLookupTimeout time.Duration

	// Reporting
	ReportDBPath string

	// Logging
	LogLevel string
}

// Load reads the configuration from the environment. A .env file, if any,
// has already been applied by the caller.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		Port:         getEnv("PORT", "8080"),
		AuthUser:     getEnv("AUTH_USER", ""),
		AuthPass:     getEnv("AUTH_PASS", ""),
		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "*")),
		ReportDBPath: getEnv("REPORT_DB_PATH", "./data/report.duckdb"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	conns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_CONNS: %w", err)
	}
	cfg.MaxConns = int32(conns)

	cfg.SoldLookupTimeout, err = time.ParseDuration(getEnv("SOLD_LOOKUP_TIMEOUT", "3s"))
	if err != nil {
		return nil, fmt.Errorf("SOLD_LOOKUP_TIMEOUT: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if (c.AuthUser == "") != (c.AuthPass == "") {
		return fmt.Errorf("AUTH_USER and AUTH_PASS must be set together")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.SoldLookupTimeout <= 0 {
		return fmt.Errorf("SOLD_LOOKUP_TIMEOUT must be positive")
	}
	return nil
}

// RequireDatabase reports a missing DATABASE_URL for commands that need one.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
