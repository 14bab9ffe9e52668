package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the nexus service
// Environment variables are automatically parsed from NEXUS_ prefix
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"3001"`

	// Database Configuration
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"nexus.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Generator Configuration. These are fallbacks; operator settings
	// persisted in the store take precedence when present.
	Provider  string `envconfig:"PROVIDER" default:"openai"`
	ModelURL  string `envconfig:"MODEL_URL" default:""`
	APIKey    string `envconfig:"API_KEY" default:""`
	ModelName string `envconfig:"MODEL_NAME" default:"gpt-4o"`

	// HistoryWindow is how many trailing messages are sent to the generator.
	HistoryWindow int `envconfig:"HISTORY_WINDOW" default:"6"`

	// LogRequests enables persisting generator request/response pairs.
	LogRequests bool `envconfig:"LOG_REQUESTS" default:"false"`
}

// ResolveDefaults derives DBDriver when set to "auto" or empty and validates it.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}

	allowedDB := map[string]bool{"sqlite": true, "postgres": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be positive, got %d", c.HistoryWindow)
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with NEXUS_
// Example: NEXUS_HTTP_PORT, NEXUS_DB_DRIVER
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("NEXUS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("db_driver", cfg.DBDriver).
		Str("provider", cfg.Provider).
		Str("model", cfg.ModelName).
		Int("history_window", cfg.HistoryWindow).
		Bool("log_requests", cfg.LogRequests).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:   EnvTesting,
		HTTPPort:      3001,
		DBDriver:      "sqlite",
		SQLitePath:    ":memory:",
		Provider:      "openai",
		ModelName:     "gpt-4o",
		HistoryWindow: 6,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
