package app

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/monorkin/nightscout-watch-monitor/internal/broker"
	"github.com/monorkin/nightscout-watch-monitor/internal/config"
	"github.com/monorkin/nightscout-watch-monitor/internal/database"
	"github.com/monorkin/nightscout-watch-monitor/internal/httpapi"
	"github.com/monorkin/nightscout-watch-monitor/internal/logging"
	"github.com/monorkin/nightscout-watch-monitor/internal/models"
	"github.com/monorkin/nightscout-watch-monitor/nightscout/api"
	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
)

const (
	APP_IDENTIFIER = "io.stanko.nightscout-watch-monitor"
)

type watchEntryEmitter interface {
	EmitWatchEntryUpdated(site string, entry watch.WatchEntry) error
}

// App polls the configured sites and hands every new reading to storage,
// the broker and the session bus.
type App struct {
	settings  *config.Settings
	client    *api.Client
	store     *database.Store
	filter    *DuplicateFilter
	messaging broker.Messaging
	publisher broker.Publisher
	emitter   watchEntryEmitter
	logs      *logging.Logrus
	logger    *logrus.Entry

	pipelineMutex sync.Mutex

	// latestMutex guards latest and emitter, the bus can call in as soon as
	// the service is exported.
	latestMutex sync.RWMutex
	latest      map[string]watch.WatchEntry
}

func New(settings *config.Settings, store *database.Store, logs *logging.Logrus) (*App, error) {
	pollInterval, err := settings.PollDuration()
	if err != nil {
		return nil, err
	}

	epochUnit, err := settings.DecoderEpochUnit()
	if err != nil {
		return nil, err
	}

	app := &App{
		settings: settings,
		store:    store,
		filter:   NewDuplicateFilter(DEDUP_FILTER_CAPACITY, DEDUP_FALSE_POSITIVE_RATE, DEDUP_MAXIMUM_PERCENTAGE_USAGE),
		logs:     logs,
		logger:   logs.Get("app"),
		latest:   make(map[string]watch.WatchEntry),
	}

	app.client = api.NewClientWithLogger(logs.Get("api"))
	app.client.SetDecoder(watch.NewDecoder(
		watch.WithEpochUnit(epochUnit),
		watch.WithLogger(logs.Get("decoder")),
	))
	app.client.SetPollInterval(pollInterval)
	app.client.SetOnWatchEntry(app.HandleWatchEntry)

	for _, site := range settings.Sites {
		if _, err := app.client.AddSite(site.Name, site.URL, site.APISecret); err != nil {
			return nil, errors.Wrapf(err, "invalid site %s", site.Name)
		}
	}

	if settings.AMQPURL != "" {
		app.messaging = broker.NewAMQP(settings.AMQPURL, logs.Get("broker"))
		app.publisher = broker.NewMsgPublisher(app.messaging, settings.AMQPExchange)
	}

	return app, nil
}

func (app *App) Client() *api.Client {
	return app.client
}

// Run blocks until ctx is cancelled or the HTTP API fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()

		if app.messaging != nil {
			app.messaging.Stop()
		}
	}()

	if app.messaging != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.messaging.Start(ctx); err != nil {
				app.logger.WithError(err).Error("Broker unavailable, readings will not be published")
			}
		}()
	}

	if app.settings.DBusEnabled {
		service, err := NewDBusService(app)
		if err != nil {
			app.logger.WithError(err).Warn("Failed to start DBus service")
		} else {
			app.logger.Info("DBus service started")
			app.setEmitter(service)
			defer service.Close()
		}
	}

	app.client.StartPolling()
	defer app.client.StopPolling()

	errCh := make(chan error, 1)
	if app.settings.HTTPAddr != "" {
		server := httpapi.New(app.settings.HTTPAddr, app.store, app.logs.Get("http"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	app.logger.WithField("sites", len(app.settings.Sites)).Info("Monitor running")

	select {
	case <-ctx.Done():
		app.logger.Info("Monitor stopping")
		return nil
	case err := <-errCh:
		return errors.Wrap(err, "HTTP API failed")
	}
}

// HandleWatchEntry is called after every successful site refresh. Sites are
// refreshed concurrently, so entries are handled one at a time.
func (app *App) HandleWatchEntry(site api.Site, entry watch.WatchEntry) {
	app.pipelineMutex.Lock()
	defer app.pipelineMutex.Unlock()

	logger := app.logger.WithField("site", site.Name)

	app.latestMutex.Lock()
	app.latest[site.Name] = entry
	app.latestMutex.Unlock()

	record := &models.Site{
		Name:     site.Name,
		URL:      site.URL,
		LastSeen: site.LastUpdated,
	}
	if site.Status != nil {
		record.Units = site.Status.Settings.Units
		record.Version = site.Status.Version
	}

	if err := app.store.UpsertSite(record); err != nil {
		logger.WithError(err).Error("Failed to store site")
		return
	}

	if entry.SensorGlucoseValue == nil {
		logger.Debug("Watch entry has no sensor reading, not storing")
		return
	}

	if app.filter.Seen(site.Name, entry) {
		logger.Debug("Watch entry already handled")
		return
	}

	reading := models.ReadingFromWatchEntry(record.ID, entry)
	saved, err := app.store.SaveReading(&reading)
	if err != nil {
		app.filter.Forget(site.Name)
		logger.WithError(err).Error("Failed to store reading")
		return
	}
	if !saved {
		return
	}

	logger.WithFields(logrus.Fields{
		"sgv":       entry.SensorGlucoseValue.SGV,
		"direction": entry.SensorGlucoseValue.Direction,
		"timestamp": entry.Timestamp,
	}).Info("Stored new reading")

	if app.publisher != nil {
		if err := app.publisher.PublishWatchEntry(site.Name, site.URL, entry); err != nil {
			logger.WithError(err).Warn("Failed to publish reading")
		}
	}

	if emitter := app.currentEmitter(); emitter != nil {
		if err := emitter.EmitWatchEntryUpdated(site.Name, entry); err != nil {
			logger.WithError(err).Warn("Failed to emit watch entry signal")
		}
	}
}

func (app *App) setEmitter(emitter watchEntryEmitter) {
	app.latestMutex.Lock()
	app.emitter = emitter
	app.latestMutex.Unlock()
}

func (app *App) currentEmitter() watchEntryEmitter {
	app.latestMutex.RLock()
	defer app.latestMutex.RUnlock()

	return app.emitter
}

// SelectedWatchEntry prefers the entry fetched during this run and falls
// back to the newest stored reading.
func (app *App) SelectedWatchEntry() (string, watch.WatchEntry, bool) {
	name := app.settings.SelectedSiteName()
	if name == "" {
		return "", watch.WatchEntry{}, false
	}

	app.latestMutex.RLock()
	entry, ok := app.latest[name]
	app.latestMutex.RUnlock()
	if ok {
		return name, entry, true
	}

	site, err := app.store.FindSite(name)
	if err != nil {
		return name, watch.WatchEntry{}, false
	}

	reading, err := app.store.LatestReading(site.ID)
	if err != nil {
		return name, watch.WatchEntry{}, false
	}

	return name, reading.WatchEntry(), true
}

func (app *App) Refresh(ctx context.Context) int {
	return app.client.RefreshSites(ctx, true)
}
