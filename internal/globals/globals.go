package globals

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/monorkin/nightscout-watch-monitor/internal/config"
	"github.com/monorkin/nightscout-watch-monitor/internal/database"
	"github.com/monorkin/nightscout-watch-monitor/internal/logging"
)

var (
	Settings *config.Settings
	Logging  *logging.Logrus
	Logger   *logrus.Entry
	Store    *database.Store

	initOnce sync.Once
	initErr  error
)

// Initialize loads settings, sets up logging and opens the database, once.
// Logs go to stderr so that command output on stdout stays machine readable.
func Initialize(verbose bool) error {
	initOnce.Do(func() {
		config.LoadEnvironment()

		var (
			newSettings bool
			settings    *config.Settings
		)
		newSettings, settings, initErr = config.LoadOrInitializeSettingsFromDefaultLocation()
		if initErr != nil {
			return
		}
		settings.ApplyEnvironment()
		Settings = settings

		level := Settings.LogLevel
		if verbose {
			level = logrus.DebugLevel.String()
		}
		Logging = logging.NewLogrus(level, os.Stderr)
		Logger = Logging.Get("cli")

		if newSettings {
			Logger.Debug("Created new settings file")
			if err := Settings.Save(); err != nil {
				Logger.WithError(err).Error("Failed to save new settings")
			}
		} else {
			Logger.Debug("Loaded existing settings")
		}

		if initErr = database.Init(); initErr != nil {
			return
		}
		Store = database.NewStore(database.DB)
		Logger.WithField("path", config.DBPath()).Debug("Database initialized")
	})

	return initErr
}

func MustBeInitialized() {
	if Settings == nil || Logger == nil || Store == nil {
		panic("globals not initialized - call globals.Initialize() first")
	}
}
