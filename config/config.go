package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mexcSniperBot/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// MEXC API
	APIKey     string
	SecretKey  string
	APIBaseURL string // Binance-compatible REST base
	WebBaseURL string // Calendar/symbol status base

	// Sniping Parameters
	BuyAmountUSDT        float64 // Quote amount per snipe before strategy sizing
	ActiveStrategy       string  // conservative | balanced | aggressive | custom name
	MaxConcurrentTargets int
	TargetAdvanceHours   float64 // Only track listings at least this far out when positive advance filtering is wanted

	// Polling
	CalendarPollInterval   time.Duration // Default 5m
	SymbolsPollInterval    time.Duration // Default 30s
	NearLaunchPollInterval time.Duration // Default 5s
	NearLaunchWindow       time.Duration // Tighten polling inside this window before launch
	PositionCheckInterval  time.Duration // Default 5s
	HealthCheckInterval    time.Duration // Default 60s
	ExpiryGraceWindow      time.Duration // Keep targets past launch this long before expiring

	// Exits
	DefaultStopLossPercent   float64
	DefaultTakeProfitPercent float64

	// Enrichment (optional LLM confidence enhancer)
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel

	// Connection Settings
	HTTPTimeout      time.Duration
	RetryMaxAttempts int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// MEXC API
	cfg.APIKey = getEnv("MEXC_API_KEY", "")
	cfg.SecretKey = getEnv("MEXC_SECRET_KEY", "")
	cfg.APIBaseURL = getEnv("MEXC_API_BASE_URL", "https://api.mexc.com")
	cfg.WebBaseURL = getEnv("MEXC_WEB_BASE_URL", "https://www.mexc.com")
	if cfg.APIKey == "" {
		errs = append(errs, "MEXC_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "MEXC_SECRET_KEY must be set")
	}

	// Sniping parameters
	cfg.BuyAmountUSDT, err = getEnvAsFloatRequired("BUY_AMOUNT_USDT", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BUY_AMOUNT_USDT: %v", err))
	} else if cfg.BuyAmountUSDT <= 0 {
		errs = append(errs, "BUY_AMOUNT_USDT must be positive")
	}

	cfg.ActiveStrategy = getEnv("ACTIVE_STRATEGY", "balanced")
	if cfg.ActiveStrategy == "" {
		errs = append(errs, "ACTIVE_STRATEGY must be set")
	}

	cfg.MaxConcurrentTargets, err = getEnvAsIntRequired("MAX_CONCURRENT_TARGETS", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_CONCURRENT_TARGETS: %v", err))
	} else if cfg.MaxConcurrentTargets <= 0 {
		errs = append(errs, "MAX_CONCURRENT_TARGETS must be positive")
	}

	cfg.TargetAdvanceHours = getEnvAsFloat("TARGET_ADVANCE_HOURS", 3.5)
	if cfg.TargetAdvanceHours < 0 {
		errs = append(errs, "TARGET_ADVANCE_HOURS cannot be negative")
	}

	// Polling
	cfg.CalendarPollInterval = getEnvAsDuration("CALENDAR_POLL_SECONDS", 300, &errs)
	cfg.SymbolsPollInterval = getEnvAsDuration("SYMBOLS_POLL_SECONDS", 30, &errs)
	cfg.NearLaunchPollInterval = getEnvAsDuration("NEAR_LAUNCH_POLL_SECONDS", 5, &errs)
	cfg.PositionCheckInterval = getEnvAsDuration("POSITION_CHECK_SECONDS", 5, &errs)
	cfg.HealthCheckInterval = getEnvAsDuration("HEALTH_CHECK_SECONDS", 60, &errs)

	nearLaunchMinutes := getEnvAsInt("NEAR_LAUNCH_WINDOW_MINUTES", 60)
	if nearLaunchMinutes <= 0 {
		errs = append(errs, "NEAR_LAUNCH_WINDOW_MINUTES must be positive")
	}
	cfg.NearLaunchWindow = time.Duration(nearLaunchMinutes) * time.Minute

	graceMinutes := getEnvAsInt("EXPIRY_GRACE_MINUTES", 5)
	if graceMinutes <= 0 {
		errs = append(errs, "EXPIRY_GRACE_MINUTES must be positive")
	}
	cfg.ExpiryGraceWindow = time.Duration(graceMinutes) * time.Minute

	if cfg.NearLaunchPollInterval >= cfg.SymbolsPollInterval {
		errs = append(errs, "NEAR_LAUNCH_POLL_SECONDS must be less than SYMBOLS_POLL_SECONDS")
	}

	// Exits
	cfg.DefaultStopLossPercent, err = getEnvAsFloatRequired("DEFAULT_STOP_LOSS_PERCENT", 10.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_STOP_LOSS_PERCENT: %v", err))
	} else if cfg.DefaultStopLossPercent <= 0 || cfg.DefaultStopLossPercent >= 100 {
		errs = append(errs, "DEFAULT_STOP_LOSS_PERCENT must be between 0 and 100 (exclusive)")
	}

	cfg.DefaultTakeProfitPercent, err = getEnvAsFloatRequired("DEFAULT_TAKE_PROFIT_PERCENT", 25.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_TAKE_PROFIT_PERCENT: %v", err))
	} else if cfg.DefaultTakeProfitPercent <= cfg.DefaultStopLossPercent {
		errs = append(errs, "DEFAULT_TAKE_PROFIT_PERCENT must be greater than DEFAULT_STOP_LOSS_PERCENT")
	}

	// Enrichment is optional: an empty key disables the LLM enhancer.
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", "")
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", "")

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/sniper_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Connection settings
	cfg.HTTPTimeout = getEnvAsDuration("HTTP_TIMEOUT_SECONDS", 10, &errs)
	cfg.RetryMaxAttempts = getEnvAsInt("RETRY_MAX_ATTEMPTS", 3)
	if cfg.RetryMaxAttempts <= 0 {
		errs = append(errs, "RETRY_MAX_ATTEMPTS must be positive")
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

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
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

func getEnvAsDuration(key string, defaultSeconds int, errs *[]string) time.Duration {
	seconds := getEnvAsInt(key, defaultSeconds)
	if seconds <= 0 {
		*errs = append(*errs, key+" must be positive")
		seconds = defaultSeconds
	}
	return time.Duration(seconds) * time.Second
}
