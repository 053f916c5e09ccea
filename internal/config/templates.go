package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trade Journal Configuration

[database]
# SQLite database file (defaults to journal.db next to this file)
# path = "/home/me/.config/trade-journal/journal.db"

[logging]
# Log level: debug, info, warn, error
level = "info"
# Human-readable output on stderr
console = true
# Rotating JSON log file
file = false
max_size = 100
max_backups = 7
max_age = 30

[broker]
# Broker: "paper" or "zerodha"
mode = "paper"
# Kite Connect exchange and product used for orders
exchange = "NSE"
product = "CNC"
# Circuit breaker around broker calls
failure_threshold = 5
reset_timeout = "30s"

[audit]
# Append-only JSON trail of ledger appends and trade transitions
enabled = true

# WARNING: Keep credentials secure! Prefer KITE_API_KEY / KITE_ACCESS_TOKEN.
[credentials.kite]
api_key = ""
api_secret = ""
access_token = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	// Restricted permissions, the file may hold credentials
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
