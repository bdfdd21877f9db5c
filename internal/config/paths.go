package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	appName        = "mcphub"
	userConfigDir  = ".config/" + appName
	configFileName = "config.yaml"
)

// GetDefaultConfigPath returns ~/.config/mcphub/config.yaml.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// GetDefaultStateDir returns the directory holding cross-process state such as the
// workspace registry: $XDG_STATE_HOME/mcphub, falling back to ~/.local/state/mcphub.
func GetDefaultStateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" && filepath.IsAbs(dir) {
		return filepath.Join(dir, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user state directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "state", appName), nil
}
