// Package config loads zaupnik's settings. Defaults come from struct tags,
// environment variables (ZAUPNIK_*) override them, and command-line flags
// override both.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"

	"github.com/erazemk/zaupnik/internal/access"
	"github.com/erazemk/zaupnik/internal/db"
)

// Config holds process-wide settings.
type Config struct {
	Driver    string `env:"ZAUPNIK_DB_DRIVER" envDefault:"sqlite"`
	DSN       string `env:"ZAUPNIK_DB"        envDefault:"zaupnik.sqlite3"`
	Addr      string `env:"ZAUPNIK_ADDR"      envDefault:":8080"`
	AdminUser string `env:"ZAUPNIK_ADMIN_USER" envDefault:"Admin"`
	LogPath   string `env:"ZAUPNIK_LOG"`

	LinkScheme     string        `env:"ZAUPNIK_LINK_SCHEME"     envDefault:"zaupnik"`
	TransferWindow time.Duration `env:"ZAUPNIK_TRANSFER_WINDOW" envDefault:"720h"`
	RetryAttempts  uint          `env:"ZAUPNIK_RETRY_ATTEMPTS"  envDefault:"5"`
	RetryDelay     time.Duration `env:"ZAUPNIK_RETRY_DELAY"     envDefault:"20ms"`
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// AddFlags binds the storage and logging settings to flagSet. Current values
// become the flag defaults, so call it after FromEnv.
func (c *Config) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.Driver, "driver", c.Driver, "storage driver: sqlite or postgres")
	flagSet.StringVarP(&c.DSN, "db", "d", c.DSN, "SQLite database path or postgres DSN")
	flagSet.StringVarP(&c.LogPath, "log", "l", c.LogPath, "log file path (rotated; default: stdout/stderr only)")
}

// AddServerFlags binds the settings only the server uses.
func (c *Config) AddServerFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&c.Addr, "addr", "a", c.Addr, "listen address")
	flagSet.StringVarP(&c.AdminUser, "user", "u", c.AdminUser, "admin username on first run")
}

// AddAccessFlags binds the access service's tunables.
func (c *Config) AddAccessFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.LinkScheme, "link-scheme", c.LinkScheme, "URL scheme of share links")
	flagSet.DurationVar(&c.TransferWindow, "transfer-window", c.TransferWindow, "how long a transfer request stays redeemable")
	flagSet.UintVar(&c.RetryAttempts, "retry-attempts", c.RetryAttempts, "attempts per operation on storage conflicts")
	flagSet.DurationVar(&c.RetryDelay, "retry-delay", c.RetryDelay, "base delay between conflict retries")
}

// Validate checks the settings for values nothing downstream can use.
func (c *Config) Validate() error {
	switch c.Driver {
	case db.DriverSQLite, db.DriverPostgres:
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("database is required")
	}
	if c.TransferWindow <= 0 {
		return fmt.Errorf("transfer window must be positive, got %s", c.TransferWindow)
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be at least 1")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative")
	}
	return nil
}

// Access returns the access service configuration.
func (c *Config) Access() access.Config {
	return access.Config{
		TransferWindow: c.TransferWindow,
		RetryAttempts:  c.RetryAttempts,
		RetryDelay:     c.RetryDelay,
		LinkScheme:     c.LinkScheme,
	}
}
