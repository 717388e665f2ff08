// Package daemon manages the taskbay service lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/taskbay/taskbay/internal/domain"
)

// Config holds all daemon configuration.
type Config struct {
	Platform  PlatformConfig  `toml:"platform"`
	API       APIConfig       `toml:"api"`
	Store     StoreConfig     `toml:"store"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Health    HealthConfig    `toml:"health"`
}

// PlatformConfig seeds the operator state of a fresh store.
type PlatformConfig struct {
	Owner         string `toml:"owner"`
	FeePercentage int64  `toml:"fee_percentage" validate:"min=0,max=100"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host" validate:"required"`
	Port        int      `toml:"port" validate:"min=1,max=65535"`
	CORSOrigins []string `toml:"cors_origins"`
}

// StoreConfig controls durable storage.
type StoreConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// HealthConfig controls the periodic health checker.
type HealthConfig struct {
	Interval string `toml:"interval"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Platform: PlatformConfig{
			Owner:         string(domain.Unassigned),
			FeePercentage: 1,
		},
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8545,
			CORSOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Dir: taskbayHome(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Health: HealthConfig{
			Interval: "60s",
		},
	}
}

var validate = validator.New()

// Validate checks field ranges and the health interval syntax.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", e.Namespace(), e.Tag(), e.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Health.Interval != "" {
		if _, err := time.ParseDuration(c.Health.Interval); err != nil {
			return fmt.Errorf("invalid config: health.interval: %w", err)
		}
	}
	return nil
}

// LoadConfig reads config from $TASKBAY_HOME/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = taskbayHome()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to $TASKBAY_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the location of config.toml.
func ConfigPath() string {
	return filepath.Join(taskbayHome(), "config.toml")
}

// taskbayHome returns the taskbay data directory.
func taskbayHome() string {
	if env := os.Getenv("TASKBAY_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".taskbay")
}

// Home is exported for use by other packages.
func Home() string {
	return taskbayHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
