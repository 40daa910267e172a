package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/elkingarcia11/market-data-api/internal/adapters/logger"
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// AccessTokenEnv is the environment variable the token provider reads.
// External auth tooling keeps its value current.
const AccessTokenEnv = "SCHWAB_ACCESS_TOKEN"

// Config holds all application configuration.
type Config struct {
	// Market Data API
	APIBaseURL     string
	APITimeout     time.Duration
	RateLimitDelay time.Duration // pause between consecutive API requests

	// Market
	MarketTimezone string

	// Storage
	DataDir       string
	JournalDBPath string

	// Backfill job
	JobFile  string
	CronSpec string // optional; empty means run once and exit

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.APIBaseURL = getEnv("SCHWAB_API_BASE_URL", "https://api.schwabapi.com/marketdata/v1")
	if cfg.APIBaseURL == "" {
		errs = append(errs, "SCHWAB_API_BASE_URL must be set")
	}

	timeoutSeconds := getEnvAsInt("API_TIMEOUT_SECONDS", 30)
	if timeoutSeconds <= 0 {
		errs = append(errs, "API_TIMEOUT_SECONDS must be positive")
	}
	cfg.APITimeout = time.Duration(timeoutSeconds) * time.Second

	rateDelaySeconds, err := getEnvAsFloatRequired("RATE_LIMIT_DELAY_SECONDS", 1.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RATE_LIMIT_DELAY_SECONDS: %v", err))
	} else if rateDelaySeconds < 0 {
		errs = append(errs, "RATE_LIMIT_DELAY_SECONDS cannot be negative")
	}
	cfg.RateLimitDelay = time.Duration(rateDelaySeconds * float64(time.Second))

	cfg.MarketTimezone = getEnv("MARKET_TIMEZONE", "America/New_York")

	cfg.DataDir = getEnv("DATA_DIR", "./data")
	if cfg.DataDir == "" {
		errs = append(errs, "DATA_DIR must be set")
	}
	cfg.JournalDBPath = getEnv("JOURNAL_DB_PATH", "./data/fetch_journal.db")

	cfg.JobFile = getEnv("JOB_FILE", "./backfill.yaml")
	cfg.CronSpec = getEnv("BACKFILL_CRON", "")

	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", LogFormatText))
	if cfg.LogFormat != LogFormatText && cfg.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be %q or %q", LogFormatText, LogFormatJSON))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
