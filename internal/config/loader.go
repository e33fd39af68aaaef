package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"disnix/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/disnix"
	configFileName = "config.yaml"
)

// GetDefaultConfigPathOrPanic returns "$HOME/.config/disnix".
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// Load builds a Config starting from FromEnv() and overlaying config.yaml
// from configPath, if present. A missing file is not an error: the
// environment-derived defaults are returned as-is.
func Load(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	cfg := FromEnv()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("config", "no config.yaml found at %s, using defaults", configFilePath)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config from %s: %w", configFilePath, err)
	}
	logging.Info("config", "loaded configuration from %s", configFilePath)

	return cfg, nil
}
