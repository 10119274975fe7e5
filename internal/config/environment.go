package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	LOG_LEVEL_ENV     = "NIGHTSCOUT_WATCH_LOG_LEVEL"
	HTTP_ADDR_ENV     = "NIGHTSCOUT_WATCH_HTTP_ADDR"
	AMQP_URL_ENV      = "NIGHTSCOUT_WATCH_AMQP_URL"
	EPOCH_UNIT_ENV    = "NIGHTSCOUT_WATCH_EPOCH_UNIT"
	POLL_INTERVAL_ENV = "NIGHTSCOUT_WATCH_POLL_INTERVAL"
)

// LoadEnvironment reads .env from the working directory and then from the
// config directory. Variables that are already set are never overwritten,
// and missing files are ignored.
func LoadEnvironment() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(ConfigDir(), ".env"))
}

func (s *Settings) environmentFields() map[string]*string {
	return map[string]*string{
		LOG_LEVEL_ENV:     &s.LogLevel,
		HTTP_ADDR_ENV:     &s.HTTPAddr,
		AMQP_URL_ENV:      &s.AMQPURL,
		EPOCH_UNIT_ENV:    &s.EpochUnit,
		POLL_INTERVAL_ENV: &s.PollInterval,
	}
}

// ApplyEnvironment overrides settings from the environment for this process
// only. Save keeps writing the values that came from the settings file.
func (s *Settings) ApplyEnvironment() {
	for variable, field := range s.environmentFields() {
		value := strings.TrimSpace(os.Getenv(variable))
		if value == "" {
			continue
		}

		if s.fileValues == nil {
			s.fileValues = map[string]string{}
		}
		if _, ok := s.fileValues[variable]; !ok {
			s.fileValues[variable] = *field
		}
		*field = value
	}
}
