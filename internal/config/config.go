// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Analytics views selectable through ANALYTICS_VIEW.
const (
	ViewAnalytics = "analytics"
	ViewSummary   = "summary"
)

// Config holds application configuration
type Config struct {
	APIBaseURL             string // Remote analytics service, e.g. http://localhost:8000
	DataDir                string // Base directory for the local databases (always absolute)
	LogLevel               string
	LogPretty              bool
	Port                   int
	DevMode                bool
	RequestTimeout         time.Duration // Per-request transport timeout
	CycleTimeout           time.Duration // Upper bound on a whole fetch cycle
	MaxConcurrentQueries   int           // 0 means unlimited
	View                   string        // analytics or summary
	RateRefreshSchedule    string        // cron spec for exchange rate refresh
	CacheCleanupSchedule   string        // cron spec for client data cleanup
	CacheRetention         time.Duration // How long expired cache entries survive as stale fallbacks
	PreferencesMaxAttempts int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ANALYZER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		APIBaseURL:             strings.TrimRight(getEnv("ANALYTICS_API_URL", "http://localhost:8000"), "/"),
		DataDir:                absDataDir,
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogPretty:              getEnvAsBool("LOG_PRETTY", false),
		Port:                   getEnvAsInt("PORT", 8001),
		DevMode:                getEnvAsBool("DEV_MODE", false),
		RequestTimeout:         time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		CycleTimeout:           time.Duration(getEnvAsInt("CYCLE_TIMEOUT_SECONDS", 60)) * time.Second,
		MaxConcurrentQueries:   getEnvAsInt("MAX_CONCURRENT_QUERIES", 0),
		View:                   strings.ToLower(getEnv("ANALYTICS_VIEW", ViewAnalytics)),
		RateRefreshSchedule:    getEnv("RATE_REFRESH_SCHEDULE", "@every 1h"),
		CacheCleanupSchedule:   getEnv("CACHE_CLEANUP_SCHEDULE", "@daily"),
		CacheRetention:         time.Duration(getEnvAsInt("CACHE_RETENTION_HOURS", 168)) * time.Hour,
		PreferencesMaxAttempts: getEnvAsInt("PREFERENCES_MAX_ATTEMPTS", 3),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid ANALYTICS_API_URL %q: %w", c.APIBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid ANALYTICS_API_URL %q: scheme must be http or https", c.APIBaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid ANALYTICS_API_URL %q: missing host", c.APIBaseURL)
	}

	switch c.View {
	case ViewAnalytics, ViewSummary:
	default:
		return fmt.Errorf("invalid ANALYTICS_VIEW %q: expected %s or %s", c.View, ViewAnalytics, ViewSummary)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if c.CycleTimeout <= 0 {
		return fmt.Errorf("CYCLE_TIMEOUT_SECONDS must be positive")
	}
	if c.MaxConcurrentQueries < 0 {
		return fmt.Errorf("MAX_CONCURRENT_QUERIES must not be negative")
	}
	if c.PreferencesMaxAttempts < 1 {
		c.PreferencesMaxAttempts = 1
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
