package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	DBPath          string
	APIPort         string
	MaxUploadBytes  int64
	MaxResults      int
	OverfetchFactor int
	DebounceMs      int
	StoreRetries    int
	StoreBackoffMs  int
	LogLevel        slog.Level
	LogFormat       string
	LogFile         string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the numeric ones.
// If a .env file exists in the current directory or project root, it is loaded
// automatically; environment variables already set take precedence.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		DBPath:    getEnv("DB_PATH", "./data/sheetsearch.db"),
		APIPort:   getEnv("API_PORT", "9000"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	if cfg.MaxUploadBytes, err = getEnvInt64("MAX_UPLOAD_BYTES", 10<<20); err != nil {
		return nil, err
	}
	maxResults, err := getEnvInt("MAX_SEARCH_RESULTS", 200)
	if err != nil {
		return nil, err
	}
	cfg.MaxResults = maxResults

	if cfg.OverfetchFactor, err = getEnvInt("SEARCH_OVERFETCH_FACTOR", 5); err != nil {
		return nil, err
	}
	if cfg.DebounceMs, err = getEnvInt("SEARCH_DEBOUNCE_MS", 300); err != nil {
		return nil, err
	}
	if cfg.StoreRetries, err = getEnvInt("STORE_RETRY_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.StoreBackoffMs, err = getEnvInt("STORE_RETRY_BACKOFF_MS", 500); err != nil {
		return nil, err
	}

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be greater than 0")
	}
	if cfg.MaxResults <= 0 {
		return nil, fmt.Errorf("MAX_SEARCH_RESULTS must be greater than 0")
	}
	if cfg.OverfetchFactor < 1 {
		return nil, fmt.Errorf("SEARCH_OVERFETCH_FACTOR must be at least 1")
	}
	if cfg.StoreRetries < 1 {
		return nil, fmt.Errorf("STORE_RETRY_ATTEMPTS must be at least 1")
	}

	cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	// Create the data directory if it doesn't exist (for the DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

// getEnvInt64 gets a 64-bit integer environment variable or returns a default value.
func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

// parseLogLevel maps a level name to a slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", level)
	}
}
