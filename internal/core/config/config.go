// Package config loads user preferences from ~/.config/cophist/config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds user-configurable defaults. Every field has a sensible
// zero-config default; the file is optional.
type Config struct {
	// DBName is the catalog file name placed in the output directory.
	DBName string `toml:"db_name"`

	// OutputDir receives the catalog and companion artifacts, relative to
	// the workspace root unless absolute.
	OutputDir string `toml:"output_dir"`

	// DisableRedaction turns off secret scrubbing for every run.
	DisableRedaction bool `toml:"disable_redaction"`

	// ScanDirs are extra directories to scan when no input is given.
	ScanDirs []string `toml:"scan_dirs"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBName:    "copilot_chat_logs.db",
		OutputDir: filepath.Join(".vscode", "CopilotChatHistory"),
	}
}

// Load reads the config file, falling back to defaults when it does not
// exist. A file that exists but fails to parse is an error.
func Load() (*Config, error) {
	cfg := Default()

	path, err := configPath()
	if err != nil {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.DBName == "" {
		cfg.DBName = Default().DBName
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = Default().OutputDir
	}
	return cfg, nil
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cophist", "config.toml"), nil
}
