package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"loopauth/pkg/logging"
)

const (
	userConfigDir  = ".config/loopauth"
	configFileName = "config.yaml"
)

var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigPath returns ~/.config/loopauth.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}

	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from configPath on top of the defaults.
// A missing file yields the defaults. The result is not validated, since
// command line flags may still fill in required fields.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return Config{}, NewConfigurationError(configFilePath, "io", "failed to read configuration file", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		parseErr := NewConfigurationError(configFilePath, "parse", "malformed YAML", err)
		parseErr.Suggestions = []string{
			"Check indentation and that list items start with '- '",
			"Durations need a unit, for example timeout: 5m",
		}
		return Config{}, parseErr
	}

	logging.Debug("Config", "Loaded configuration from %s", configFilePath)
	return config, nil
}
