package config

import (
	"os"
	"path/filepath"
)

const (
	DB_NAME     = "watch.sqlite"
	DB_PATH_ENV = "NIGHTSCOUT_WATCH_DB_PATH"
)

func DBPath() string {
	if dbPath := os.Getenv(DB_PATH_ENV); dbPath != "" {
		return dbPath
	}

	return filepath.Join(DataDir(), DB_NAME)
}
