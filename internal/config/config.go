package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Config holds agent settings read from the environment.
type Config struct {
	Address   string `env:"FORMTRACK_ADDRESS" envDefault:"127.0.0.1:8123"`
	DBPath    string `env:"FORMTRACK_DB_PATH"`
	LogLevel  string `env:"FORMTRACK_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"FORMTRACK_LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment. An empty DBPath resolves to events.db in the
// platform application directory.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DBPath == "" {
		dir, err := ApplicationDirectory()
		if err != nil {
			return Config{}, err
		}
		cfg.DBPath = filepath.Join(dir, "events.db")
	}
	return cfg, nil
}

// ApplicationDirectory returns the per-user data directory for formtrack.
func ApplicationDirectory() (string, error) {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDirectory, "Library", "Application Support", "FormTrack"), nil
	case "windows":
		return filepath.Join(homeDirectory, "AppData", "Roaming", "FormTrack"), nil
	default: // linux and others
		return filepath.Join(homeDirectory, ".local", "share", "FormTrack"), nil
	}
}
