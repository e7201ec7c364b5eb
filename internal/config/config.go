package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the client configuration
type Config struct {
	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
	Session    SessionConfig    `yaml:"session"`
	CSRF       CSRFConfig       `yaml:"csrf"`
	Checkout   CheckoutConfig   `yaml:"checkout"`
	Navigation NavigationConfig `yaml:"navigation"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	LogLevel   string           `yaml:"log_level"`
}

// APIConfig points the client at the REST backend
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the durable client storage connection
type DatabaseConfig struct {
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`
}

// SessionConfig tunes the session guard
type SessionConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	MaxFailures     int           `yaml:"max_failures"`
	AccessToken     string        `yaml:"access_token"`
	RefreshToken    string        `yaml:"refresh_token"`
}

// CSRFConfig controls how long a fetched token lives in session storage
type CSRFConfig struct {
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// CheckoutConfig holds order submission settings
type CheckoutConfig struct {
	TaxRate     decimal.Decimal `yaml:"tax_rate"`
	Policy      string          `yaml:"policy"`
	RepairItems bool            `yaml:"repair_items"`
}

// NavigationConfig bounds the confirmation redirect retries
type NavigationConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

const (
	PolicyOptimistic = "optimistic"
	PolicyStrict     = "strict"
)

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Dialect: "sqlite3",
			DSN:     "bistro.db",
		},
		Session: SessionConfig{
			RefreshInterval: 5 * time.Second,
			MaxFailures:     3,
		},
		CSRF: CSRFConfig{
			SessionTTL: 10 * time.Minute,
		},
		Checkout: CheckoutConfig{
			TaxRate:     decimal.NewFromFloat(0.10),
			Policy:      PolicyOptimistic,
			RepairItems: true,
		},
		Navigation: NavigationConfig{
			MaxAttempts:     3,
			InitialInterval: 200 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if v := os.Getenv("BISTRO_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("BISTRO_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail deep inside a checkout
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch c.Database.Dialect {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database dialect: %s", c.Database.Dialect)
	}
	switch c.Checkout.Policy {
	case PolicyOptimistic, PolicyStrict:
	default:
		return fmt.Errorf("unknown checkout policy: %s", c.Checkout.Policy)
	}
	if c.Checkout.TaxRate.IsNegative() {
		return fmt.Errorf("checkout.tax_rate must not be negative")
	}
	if c.Session.MaxFailures <= 0 {
		return fmt.Errorf("session.max_failures must be positive")
	}
	if c.Navigation.MaxAttempts <= 0 {
		return fmt.Errorf("navigation.max_attempts must be positive")
	}
	return nil
}
