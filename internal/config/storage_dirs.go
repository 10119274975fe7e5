package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	APP_DIR_NAME   = "nightscout-watch-monitor"
	CONFIG_DIR_ENV = "NIGHTSCOUT_WATCH_CONFIG_DIR"
)

// DataDir holds the reading database. It follows XDG_DATA_HOME, then
// ~/.local/share, then ~/.nightscout-watch-monitor, and finally the working
// directory when no home directory can be determined.
func DataDir() string {
	return appDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ConfigDir holds settings.yaml and an optional .env file.
func ConfigDir() string {
	if configDir := os.Getenv(CONFIG_DIR_ENV); configDir != "" {
		return configDir
	}

	return appDir("XDG_CONFIG_HOME", ".config")
}

func appDir(xdgVariable, homeRelativeBase string) string {
	if xdgHome := os.Getenv(xdgVariable); xdgHome != "" {
		return filepath.Join(xdgHome, APP_DIR_NAME)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		if currentDir, err := os.Getwd(); err == nil {
			return currentDir
		}

		return "."
	}

	base := filepath.Join(homeDir, homeRelativeBase)
	if _, err := os.Stat(base); err == nil {
		return filepath.Join(base, APP_DIR_NAME)
	}

	return filepath.Join(homeDir, fmt.Sprintf(".%s", APP_DIR_NAME))
}
