// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	DBPath             string
	SessionIdleTimeout time.Duration

	GeminiAPIKey        string
	GeminiConverseModel string
	DialogueMaxAttempts int

	IllustrationMaxSessions int
	IllustrationTTL         time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		DBPath:             getEnv("DB_PATH", "./data/lingua.db"),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 5*time.Minute),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiConverseModel: getEnv("GEMINI_CONVERSE_MODEL", "gemini-2.5-flash-lite"),
		DialogueMaxAttempts: getEnvInt("DIALOGUE_MAX_ATTEMPTS", 3),

		IllustrationMaxSessions: getEnvInt("ILLUSTRATION_MAX_SESSIONS", 100),
		IllustrationTTL:         getEnvDuration("ILLUSTRATION_TTL", 30*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be > 0")
	}
	if c.DialogueMaxAttempts <= 0 {
		return fmt.Errorf("DIALOGUE_MAX_ATTEMPTS must be > 0")
	}
	if c.IllustrationMaxSessions <= 0 {
		return fmt.Errorf("ILLUSTRATION_MAX_SESSIONS must be > 0")
	}
	if c.IllustrationTTL <= 0 {
		return fmt.Errorf("ILLUSTRATION_TTL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
