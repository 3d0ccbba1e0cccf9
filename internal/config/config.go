package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"

	"github.com/bcnelson/firewalld-rule-manager/internal/validation"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Firewalld FirewalldConfig
	Sync      SyncConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/firewalld-rule-manager.db"`
}

// FirewalldConfig holds the process-wide firewalld settings: the default
// zone and naming prefix applied to rules that do not override them, the
// global enabled toggle, and the optional file shim replacing the D-Bus
// connection.
type FirewalldConfig struct {
	Enabled       bool   `env:"FIREWALLD_ENABLED" envDefault:"true"`
	DefaultZone   string `env:"FIREWALLD_DEFAULT_ZONE" envDefault:"public"`
	DefaultPrefix string `env:"FIREWALLD_DEFAULT_PREFIX" envDefault:"fwm"`
	FileShim      string `env:"FIREWALLD_FILE_SHIM"` // Path to state file for testing shim (disables D-Bus)
}

// SyncConfig holds apply behavior configuration.
type SyncConfig struct {
	AutoApply       bool          `env:"AUTO_APPLY" envDefault:"true"`
	Debounce        time.Duration `env:"APPLY_DEBOUNCE" envDefault:"5s"`
	BootstrapAPIKey string        `env:"BOOTSTRAP_API_KEY"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Firewalld); err != nil {
		return nil, fmt.Errorf("parsing firewalld config: %w", err)
	}
	if err := env.Parse(&cfg.Sync); err != nil {
		return nil, fmt.Errorf("parsing sync config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validation.ValidateZoneName(c.Firewalld.DefaultZone); err != nil {
		return fmt.Errorf("FIREWALLD_DEFAULT_ZONE: %w", err)
	}
	if err := validation.ValidatePrefix(c.Firewalld.DefaultPrefix); err != nil {
		return fmt.Errorf("FIREWALLD_DEFAULT_PREFIX: %w", err)
	}
	return nil
}

// UseFileShim returns true if the file shim should be used instead of D-Bus.
func (c *Config) UseFileShim() bool {
	return c.Firewalld.FileShim != ""
}
