package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings of both binaries. Each binary reads only the
// sections it needs.
type Config struct {
	Server     ServerConfig
	Generation GenerationConfig
	Client     ClientConfig

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// ServerConfig configures the acceptor.
type ServerConfig struct {
	Port            int           `env:"PORT" default:"8080"`
	DBPath          string        `env:"DB_PATH" default:"data/sessions.db"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"5s"`
	PromptRate      float64       `env:"PROMPT_RATE" default:"2"`
	PromptBurst     int           `env:"PROMPT_BURST" default:"5"`
}

// GenerationConfig selects and configures the text generation driver.
type GenerationConfig struct {
	Provider string        `env:"GEN_PROVIDER" default:"generic"`
	Model    string        `env:"GEN_MODEL"`
	BaseURL  string        `env:"GEN_BASE_URL" default:"https://api.openai.com/v1"`
	APIKey   string        `env:"GEN_API_KEY"`
	Timeout  time.Duration `env:"GEN_TIMEOUT" default:"30s"`
	CacheTTL time.Duration `env:"GEN_CACHE_TTL" default:"0"`
}

// ClientConfig configures the interactive client.
type ClientConfig struct {
	URL         string        `env:"CLIENT_URL" default:"ws://localhost:8080"`
	Identity    string        `env:"CLIENT_IDENTITY" default:"TOM"`
	MaxAttempts int           `env:"CLIENT_MAX_ATTEMPTS" default:"30"`
	BackoffBase time.Duration `env:"CLIENT_BACKOFF_BASE" default:"1s"`
	BackoffCap  time.Duration `env:"CLIENT_BACKOFF_CAP" default:"0"`
	RecordPath  string        `env:"CLIENT_RECORD"`
}

// AuditDisabled is the DB_PATH value that turns off the session audit store.
const AuditDisabled = "off"

// AuditEnabled reports whether session records are persisted.
func (s ServerConfig) AuditEnabled() bool {
	return s.DBPath != AuditDisabled
}

// Providers accepted by GEN_PROVIDER.
var Providers = []string{"generic", "openai", "gemini"}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env is fine; system env vars still apply.
	_ = godotenv.Load(".env")
	return FromEnv()
}

// FromEnv reads the configuration from environment variables only.
func FromEnv() (*Config, error) {
	c := &Config{}

	loaders := []func() error{
		func() error { return loadEnvInt(&c.Server.Port, "PORT", 8080) },
		func() error { return loadEnvString(&c.Server.DBPath, "DB_PATH", "data/sessions.db") },
		func() error { return loadEnvDuration(&c.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT", 5*time.Second) },
		func() error { return loadEnvFloat(&c.Server.PromptRate, "PROMPT_RATE", 2) },
		func() error { return loadEnvInt(&c.Server.PromptBurst, "PROMPT_BURST", 5) },

		func() error { return loadEnvString(&c.Generation.Provider, "GEN_PROVIDER", "generic") },
		func() error { return loadEnvString(&c.Generation.Model, "GEN_MODEL", "") },
		func() error { return loadEnvString(&c.Generation.BaseURL, "GEN_BASE_URL", "https://api.openai.com/v1") },
		func() error { return loadEnvString(&c.Generation.APIKey, "GEN_API_KEY", "") },
		func() error { return loadEnvDuration(&c.Generation.Timeout, "GEN_TIMEOUT", 30*time.Second) },
		func() error { return loadEnvDuration(&c.Generation.CacheTTL, "GEN_CACHE_TTL", 0) },

		func() error { return loadEnvString(&c.Client.URL, "CLIENT_URL", "ws://localhost:8080") },
		func() error { return loadEnvString(&c.Client.Identity, "CLIENT_IDENTITY", "TOM") },
		func() error { return loadEnvInt(&c.Client.MaxAttempts, "CLIENT_MAX_ATTEMPTS", 30) },
		func() error { return loadEnvDuration(&c.Client.BackoffBase, "CLIENT_BACKOFF_BASE", time.Second) },
		func() error { return loadEnvDuration(&c.Client.BackoffCap, "CLIENT_BACKOFF_CAP", 0) },
		func() error { return loadEnvString(&c.Client.RecordPath, "CLIENT_RECORD", "") },

		func() error { return loadEnvString(&c.LogLevel, "LOG_LEVEL", "info") },
		func() error { return loadEnvString(&c.LogFormat, "LOG_FORMAT", "text") },
	}

	for _, load := range loaders {
		if err := load(); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Helper functions for type conversion
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, "PORT must be between 1 and 65535")
	}
	if c.Server.PromptRate < 0 {
		problems = append(problems, "PROMPT_RATE must not be negative")
	}
	if c.Server.PromptBurst < 1 {
		problems = append(problems, "PROMPT_BURST must be at least 1")
	}

	if !contains(Providers, c.Generation.Provider) {
		problems = append(problems, fmt.Sprintf("GEN_PROVIDER must be one of: %s", strings.Join(Providers, ", ")))
	}
	if c.Generation.Provider != "generic" && c.Generation.APIKey == "" {
		problems = append(problems, "GEN_API_KEY is required for provider "+c.Generation.Provider)
	}
	if c.Generation.Timeout <= 0 {
		problems = append(problems, "GEN_TIMEOUT must be positive")
	}

	if !strings.HasPrefix(c.Client.URL, "ws://") && !strings.HasPrefix(c.Client.URL, "wss://") {
		problems = append(problems, "CLIENT_URL must start with ws:// or wss://")
	}
	if c.Client.MaxAttempts < 1 {
		problems = append(problems, "CLIENT_MAX_ATTEMPTS must be at least 1")
	}
	if c.Client.BackoffBase <= 0 {
		problems = append(problems, "CLIENT_BACKOFF_BASE must be positive")
	}
	if c.Client.BackoffCap < 0 {
		problems = append(problems, "CLIENT_BACKOFF_CAP must not be negative")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		problems = append(problems, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(problems) > 0 {
		return errors.New("configuration validation failed: " + strings.Join(problems, "; "))
	}
	return nil
}

// Addr returns the listen address for the server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
