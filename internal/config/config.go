// Package config provides configuration management for the journal.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	jerrors "tradejournal/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Session SessionConfig `mapstructure:"session"`
	Review  ReviewConfig  `mapstructure:"review"`
	Log     LogConfig     `mapstructure:"log"`
	Audit   AuditConfig   `mapstructure:"audit"`
	UI      UIConfig      `mapstructure:"ui"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// StorageConfig holds database locations and the write debounce.
type StorageConfig struct {
	Path       string        `mapstructure:"path"`        // durable database, default <dir>/journal.db
	SessionDir string        `mapstructure:"session_dir"` // per-terminal session databases, default os.TempDir()
	Debounce   time.Duration `mapstructure:"debounce"`
}

// SessionConfig holds sign-in defaults.
type SessionConfig struct {
	RememberMe   bool          `mapstructure:"remember_me"`
	ResetCodeTTL time.Duration `mapstructure:"reset_code_ttl"`
}

// ReviewConfig holds the chat model used for month reviews.
type ReviewConfig struct {
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxAttempts bounds tries per review on transient failures.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// AuditConfig holds audit log configuration.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// UIConfig holds terminal output preferences.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/tradejournal"
	}
	return filepath.Join(home, ".config", "tradejournal")
}

// ConfigFile returns the path of config.toml in configDir.
func ConfigFile(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}
	cfg.Dir = configDir

	applyEnvOverrides(cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.session_dir", "")
	v.SetDefault("storage.debounce", "1s")
	v.SetDefault("session.remember_me", false)
	v.SetDefault("session.reset_code_ttl", "10m")
	v.SetDefault("review.model", "gpt-4o-mini")
	v.SetDefault("review.base_url", "")
	v.SetDefault("review.api_key", "")
	v.SetDefault("review.timeout", "60s")
	v.SetDefault("review.max_attempts", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
	v.SetDefault("log.file", true)
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.dir", "")
	v.SetDefault("ui.color_enabled", true)
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Review.APIKey = v
	}
	if v := os.Getenv("TRADEJOURNAL_DB"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("TRADEJOURNAL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func (c *Config) resolvePaths() {
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.Dir, "journal.db")
	}
	if c.Storage.SessionDir == "" {
		c.Storage.SessionDir = os.TempDir()
	}
	if c.Log.FilePath == "" {
		c.Log.FilePath = filepath.Join(c.Dir, "logs", "tradejournal.log")
	}
	if c.Audit.Dir == "" {
		c.Audit.Dir = filepath.Join(c.Dir, "audit")
	}
}

// SessionDBPath returns the session database of the calling terminal. The
// parent process id identifies the shell, so each terminal gets its own
// sign-in scope.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Storage.SessionDir, fmt.Sprintf("tradejournal-session-%d.db", os.Getppid()))
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true, "disabled": true,
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Storage.Debounce < 0 {
		return jerrors.Wrap(jerrors.ErrConfigInvalid, "storage.debounce must be non-negative")
	}
	if c.Session.ResetCodeTTL < 0 {
		return jerrors.Wrap(jerrors.ErrConfigInvalid, "session.reset_code_ttl must be non-negative")
	}
	if c.Review.Timeout < 0 {
		return jerrors.Wrap(jerrors.ErrConfigInvalid, "review.timeout must be non-negative")
	}
	if c.Review.MaxAttempts < 1 {
		return jerrors.Wrap(jerrors.ErrConfigInvalid, "review.max_attempts must be at least 1")
	}
	if strings.TrimSpace(c.Review.Model) == "" {
		return jerrors.Wrap(jerrors.ErrConfigInvalid, "review.model must be set")
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return jerrors.Wrapf(jerrors.ErrConfigInvalid, "invalid log level: %s", c.Log.Level)
	}
	if c.Log.MaxSize < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAge < 0 {
		return jerrors.Wrap(jerrors.ErrConfigInvalid, "log rotation limits must be non-negative")
	}
	return nil
}
