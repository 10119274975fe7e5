package app

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/pkg/errors"

	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
)

const (
	dbusName      = "io.stanko.NightscoutWatch"
	dbusPath      = "/io/stanko/NightscoutWatch"
	dbusInterface = "io.stanko.NightscoutWatch"

	DBUS_REFRESH_TIMEOUT = 30 * time.Second
)

// watchEntrySource is what the bus object reads from and refreshes.
type watchEntrySource interface {
	SelectedWatchEntry() (string, watch.WatchEntry, bool)
	Refresh(ctx context.Context) int
}

// DBusService exports the latest watch entry on the session bus.
type DBusService struct {
	source watchEntrySource
	conn   *dbus.Conn
}

func NewDBusService(source watchEntrySource) (*DBusService, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to session bus")
	}

	service := &DBusService{
		source: source,
		conn:   conn,
	}

	if err := service.export(); err != nil {
		conn.Close()
		return nil, err
	}

	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to request bus name")
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, errors.Errorf("bus name %s already taken", dbusName)
	}

	return service, nil
}

func (s *DBusService) export() error {
	err := s.conn.ExportMethodTable(map[string]interface{}{
		"GetWatchEntry": s.GetWatchEntry,
		"Refresh":       s.Refresh,
	}, dbus.ObjectPath(dbusPath), dbusInterface)
	if err != nil {
		return errors.Wrap(err, "failed to export service")
	}

	node := &introspect.Node{
		Name: dbusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: dbusInterface,
				Methods: []introspect.Method{
					{
						Name: "GetWatchEntry",
						Args: []introspect.Arg{
							{Name: "entry", Direction: "out", Type: "a{sv}"},
						},
					},
					{
						Name: "Refresh",
					},
				},
				Signals: []introspect.Signal{
					{
						Name: "WatchEntryUpdated",
						Args: []introspect.Arg{
							{Name: "entry", Type: "a{sv}"},
						},
					},
				},
			},
		},
	}

	err = s.conn.Export(introspect.NewIntrospectable(node), dbus.ObjectPath(dbusPath), "org.freedesktop.DBus.Introspectable")
	if err != nil {
		return errors.Wrap(err, "failed to export introspection")
	}

	return nil
}

// GetWatchEntry returns the latest entry of the selected site, or an empty
// dictionary when nothing has been fetched yet.
func (s *DBusService) GetWatchEntry() (map[string]dbus.Variant, *dbus.Error) {
	site, entry, ok := s.source.SelectedWatchEntry()
	if !ok {
		return map[string]dbus.Variant{}, nil
	}

	return watchEntryVariants(site, entry), nil
}

// Refresh forces a fetch of every site.
func (s *DBusService) Refresh() *dbus.Error {
	ctx, cancel := context.WithTimeout(context.Background(), DBUS_REFRESH_TIMEOUT)
	defer cancel()

	s.source.Refresh(ctx)

	return nil
}

func (s *DBusService) EmitWatchEntryUpdated(site string, entry watch.WatchEntry) error {
	return s.conn.Emit(dbus.ObjectPath(dbusPath), dbusInterface+".WatchEntryUpdated", watchEntryVariants(site, entry))
}

func (s *DBusService) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// watchEntryVariants leaves out the keys of groups the entry does not carry.
func watchEntryVariants(site string, entry watch.WatchEntry) map[string]dbus.Variant {
	variants := map[string]dbus.Variant{
		"site":       dbus.MakeVariant(site),
		"identifier": dbus.MakeVariant(entry.Identifier),
		"device":     dbus.MakeVariant(entry.Device),
		"timestamp":  dbus.MakeVariant(entry.Timestamp.Unix()),
		"now":        dbus.MakeVariant(entry.Now.Unix()),
		"battery":    dbus.MakeVariant(int64(entry.Battery)),
		"bgdelta":    dbus.MakeVariant(int64(entry.BGDelta)),
	}

	if sgv := entry.SensorGlucoseValue; sgv != nil {
		variants["sgv"] = dbus.MakeVariant(int64(sgv.SGV))
		variants["direction"] = dbus.MakeVariant(string(sgv.Direction))
		variants["noise"] = dbus.MakeVariant(sgv.Noise.String())
		variants["filtered"] = dbus.MakeVariant(int64(sgv.Filtered))
		variants["unfiltered"] = dbus.MakeVariant(int64(sgv.Unfiltered))
		variants["rssi"] = dbus.MakeVariant(int64(sgv.RSSI))
	}

	if cal := entry.Calibration; cal != nil {
		variants["slope"] = dbus.MakeVariant(cal.Slope)
		variants["intercept"] = dbus.MakeVariant(cal.Intercept)
		variants["scale"] = dbus.MakeVariant(cal.Scale)
	}

	if entry.RawEstimate != nil {
		variants["raw"] = dbus.MakeVariant(*entry.RawEstimate)
	}

	return variants
}
