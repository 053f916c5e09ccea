// Package config provides configuration management for the trade journal.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"trade-journal/internal/errors"
	"trade-journal/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Database    DatabaseConfig `mapstructure:"database"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Broker      BrokerConfig   `mapstructure:"broker"`
	Audit       AuditConfig    `mapstructure:"audit"`
	Credentials Credentials    `mapstructure:"credentials"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-"`
}

// DatabaseConfig holds storage configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// BrokerConfig holds broker configuration.
type BrokerConfig struct {
	Mode             string        `mapstructure:"mode"` // "paper", "zerodha"
	Exchange         string        `mapstructure:"exchange"`
	Product          string        `mapstructure:"product"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// AuditConfig holds audit trail configuration.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Credentials holds API credentials.
type Credentials struct {
	Kite KiteCredentials `mapstructure:"kite"`
}

// KiteCredentials holds Kite Connect API credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	AccessToken string `mapstructure:"access_token"`
}

// Broker modes.
const (
	BrokerPaper   = "paper"
	BrokerZerodha = "zerodha"
)

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/trade-journal"
	}
	return filepath.Join(home, ".config", "trade-journal")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and then read.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("database.path", filepath.Join(configDir, "journal.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "journal.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("broker.mode", BrokerPaper)
	v.SetDefault("broker.exchange", "NSE")
	v.SetDefault("broker.product", "CNC")
	v.SetDefault("broker.failure_threshold", 5)
	v.SetDefault("broker.reset_timeout", "30s")
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.dir", filepath.Join(configDir, "audit"))

	return v
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADE_JOURNAL_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TRADE_JOURNAL_BROKER"); v != "" {
		cfg.Broker.Mode = v
	}

	// Kite credentials
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_API_SECRET"); v != "" {
		cfg.Credentials.Kite.APISecret = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	mode := strings.ToLower(c.Broker.Mode)
	if mode != BrokerPaper && mode != BrokerZerodha {
		return errors.Wrapf(errors.ErrConfigInvalid, "invalid broker mode: %s (must be 'paper' or 'zerodha')", c.Broker.Mode)
	}
	c.Broker.Mode = mode

	if !logging.ValidLevel(c.Logging.Level) {
		return errors.Wrapf(errors.ErrConfigInvalid, "invalid log level: %s", c.Logging.Level)
	}
	if c.Database.Path == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "database.path must be set")
	}
	if c.Broker.FailureThreshold < 1 {
		return errors.Wrap(errors.ErrConfigInvalid, "broker.failure_threshold must be at least 1")
	}
	if c.Broker.ResetTimeout <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "broker.reset_timeout must be positive")
	}
	if mode == BrokerZerodha && c.Credentials.Kite.APIKey == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "credentials.kite.api_key is required for the zerodha broker")
	}

	return nil
}

// IsPaperMode returns true if the paper broker is selected.
func (c *Config) IsPaperMode() bool {
	return c.Broker.Mode == BrokerPaper
}

// LogConfig converts the logging section into a logging.LogConfig.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}
