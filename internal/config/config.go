// Package config loads mathquiz settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/jwulff/mathquiz/internal/db"
)

// Config holds settings for the TUI, script and MCP entry points.
type Config struct {
	DBPath            string
	BankPath          string
	DefaultCategories []string
	LogFile           string
	StoreTimeout      time.Duration
}

// Load reads .env from the working directory if present, then the
// environment. A missing .env is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	timeout, err := time.ParseDuration(getEnv("QUIZ_STORE_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("parse QUIZ_STORE_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("QUIZ_STORE_TIMEOUT must be positive, got %s", timeout)
	}

	return &Config{
		DBPath:            getEnv("QUIZ_DB_PATH", db.DefaultDBPath()),
		BankPath:          os.Getenv("QUIZ_BANK_PATH"),
		DefaultCategories: splitList(getEnv("QUIZ_DEFAULT_CATEGORIES", "arithmetic")),
		LogFile:           os.Getenv("QUIZ_LOG_FILE"),
		StoreTimeout:      timeout,
	}, nil
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
