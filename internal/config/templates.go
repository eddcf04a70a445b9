package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trade Journal Configuration

[storage]
# Durable database. Empty uses journal.db next to this file.
path = ""
# Directory for per-terminal session databases. Empty uses the system temp dir.
session_dir = ""
# Trailing window over which edits are coalesced into one write
debounce = "1s"

[session]
# Default for "stay signed in" when login is run without --remember
remember_me = false
# Lifetime of password reset codes
reset_code_ttl = "10m"

[review]
# Chat model used for month reviews
model = "gpt-4o-mini"
# OpenAI-compatible endpoint. Empty uses api.openai.com.
base_url = ""
# Fallback API key when the signed-in user has none (OPENAI_API_KEY overrides)
api_key = ""
timeout = "60s"
# Attempts per review when the service is unreachable or overloaded
max_attempts = 3

[log]
# trace, debug, info, warn, error
level = "info"
console = false
file = true
# Empty uses logs/tradejournal.log next to this file
file_path = ""
max_size = 10
max_backups = 5
max_age = 30

[audit]
# Record sign-in, registration and password events
enabled = true
# Empty uses audit/ next to this file
dir = ""

[ui]
color_enabled = true
`

// WriteTemplate writes the default config.toml into configDir unless one
// already exists. It returns the path of the file.
func WriteTemplate(configDir string) (string, error) {
	path := ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := createTemplateConfig(filepath.Dir(path), "config"); err != nil {
		return "", err
	}
	return path, nil
}

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	// May later hold an API key.
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
