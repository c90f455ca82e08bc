package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/termhub/termsync/errors"
)

// Save writes the configuration to the default config file as TOML, creating a
// rotating backup of the previous file first.
func Save(cfg *Config) error {
	return SaveTo(cfg, DefaultConfigPath())
}

// SaveTo writes the configuration to a specific path as TOML.
func SaveTo(cfg *Config, path string) error {
	if err := createBackup(path); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config")
	}

	return nil
}

// createBackup keeps one .back copy of the config before modifying it
func createBackup(configPath string) error {
	content, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil // No file to backup
	}
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(configPath+".back", content, 0644); err != nil {
		return errors.Wrap(err, "failed to create config backup")
	}
	return nil
}
