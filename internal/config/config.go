package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fitness-debt-bot/internal/models"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const (
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// Load loads configuration from environment variables
// It first attempts to load from .env file, then reads environment variables
func Load() (*models.BotConfig, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	config := &models.BotConfig{
		// Telegram settings
		TelegramToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramUsername: getEnv("TELEGRAM_BOT_USERNAME", ""),
		AllowedChatIDs:   getEnvInt64List("TELEGRAM_ALLOWED_CHAT_IDS"),
		TelegramTimeout:  getEnvInt("TELEGRAM_TIMEOUT", 10),

		// Gemini API settings
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTimeout: getEnvInt("GEMINI_TIMEOUT", 30),

		// Storage settings
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", BackendSQLite)),
		SQLitePath:      getEnv("SQLITE_PATH", "data/fitness.db"),
		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		SupabaseTimeout: getEnvInt("SUPABASE_TIMEOUT", 10),

		// Schedules
		ReportSchedule:      getEnv("REPORT_SCHEDULE", "0 8 * * *"),
		MotivationSchedules: getEnvList("MOTIVATION_SCHEDULES", []string{"0 9 * * *", "0 20 * * *"}),

		// App settings
		Timezone:    getEnv("TIMEZONE", "Asia/Yekaterinburg"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "production"),
	}

	// Validate configuration
	if err := validate(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validate checks if all required configuration values are set
func validate(cfg *models.BotConfig) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	switch cfg.StorageBackend {
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for sqlite backend")
		}
	case BackendSupabase:
		if cfg.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required for supabase backend")
		}
		if cfg.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_KEY is required for supabase backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: sqlite, supabase; got %s", cfg.StorageBackend)
	}

	// Validate positive values
	if cfg.TelegramTimeout <= 0 {
		return fmt.Errorf("TELEGRAM_TIMEOUT must be positive, got %d", cfg.TelegramTimeout)
	}
	if cfg.GeminiTimeout <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT must be positive, got %d", cfg.GeminiTimeout)
	}
	if cfg.SupabaseTimeout <= 0 {
		return fmt.Errorf("SUPABASE_TIMEOUT must be positive, got %d", cfg.SupabaseTimeout)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q is invalid: %w", cfg.Timezone, err)
	}

	if _, err := cron.ParseStandard(cfg.ReportSchedule); err != nil {
		return fmt.Errorf("REPORT_SCHEDULE %q is invalid: %w", cfg.ReportSchedule, err)
	}
	for _, spec := range cfg.MotivationSchedules {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("MOTIVATION_SCHEDULES entry %q is invalid: %w", spec, err)
		}
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error; got %s", cfg.LogLevel)
	}

	return nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value
func getEnvInt(key string, defaultValue int) int {
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

// getEnvList splits a semicolon separated variable; cron expressions contain commas
func getEnvList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var values []string
	for _, part := range strings.Split(valueStr, ";") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

// getEnvInt64List parses a comma separated list of chat IDs, skipping malformed entries
func getEnvInt64List(key string) []int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}

	var values []int64
	for _, part := range strings.Split(valueStr, ",") {
		value, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		values = append(values, value)
	}
	return values
}
