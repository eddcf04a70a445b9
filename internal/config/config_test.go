package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "tradejournal/internal/errors"
)

func TestLoadCreatesTemplateAndUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TRADEJOURNAL_DB", "")
	t.Setenv("TRADEJOURNAL_LOG_LEVEL", "")

	cfg, err := Load(dir)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "config.toml"))
	assert.NoError(t, statErr)

	assert.Equal(t, time.Second, cfg.Storage.Debounce)
	assert.Equal(t, 10*time.Minute, cfg.Session.ResetCodeTTL)
	assert.Equal(t, "gpt-4o-mini", cfg.Review.Model)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "journal.db"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join(dir, "audit"), cfg.Audit.Dir)
	assert.True(t, cfg.Audit.Enabled)
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TRADEJOURNAL_DB", "")
	t.Setenv("TRADEJOURNAL_LOG_LEVEL", "")

	content := `
[storage]
debounce = "250ms"

[session]
remember_me = true

[review]
model = "gpt-4.1"
base_url = "http://localhost:11434/v1"

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Storage.Debounce)
	assert.True(t, cfg.Session.RememberMe)
	assert.Equal(t, "gpt-4.1", cfg.Review.Model)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Review.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset keys keep their defaults.
	assert.Equal(t, 10*time.Minute, cfg.Session.ResetCodeTTL)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("TRADEJOURNAL_DB", "/tmp/other.db")
	t.Setenv("TRADEJOURNAL_LOG_LEVEL", "warn")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Review.APIKey)
	assert.Equal(t, "/tmp/other.db", cfg.Storage.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage: StorageConfig{Debounce: time.Second},
			Session: SessionConfig{ResetCodeTTL: time.Minute},
			Review:  ReviewConfig{Model: "m", MaxAttempts: 1},
			Log:     LogConfig{Level: "info"},
		}
	}
	assert.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(*Config){
		"negative debounce": func(c *Config) { c.Storage.Debounce = -time.Second },
		"negative ttl":      func(c *Config) { c.Session.ResetCodeTTL = -time.Second },
		"empty model":       func(c *Config) { c.Review.Model = " " },
		"no attempts":       func(c *Config) { c.Review.MaxAttempts = 0 },
		"bad level":         func(c *Config) { c.Log.Level = "loud" },
		"negative rotation": func(c *Config) { c.Log.MaxAge = -1 },
	} {
		cfg := valid()
		mutate(cfg)
		err := cfg.Validate()
		assert.ErrorIs(t, err, jerrors.ErrConfigInvalid, name)
	}
}

func TestSessionDBPathIsPerTerminal(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{SessionDir: "/tmp"}}
	path := cfg.SessionDBPath()
	assert.True(t, strings.HasPrefix(path, "/tmp/tradejournal-session-"))
	assert.True(t, strings.HasSuffix(path, ".db"))
}

func TestWriteTemplateKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0600))

	got, err := WriteTemplate(dir)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))
}
