package models

import (
	"time"

	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
	"gorm.io/gorm"
)

// Reading is a stored watch entry. The sensor and calibration columns are
// NULL when the entry carried no such group. Times are kept in UTC so that
// sqlite compares them correctly as text.
type Reading struct {
	gorm.Model
	SiteID      uint
	Timestamp   time.Time `gorm:"index"`
	Now         time.Time
	Device      string
	BGDelta     int `gorm:"column:bg_delta"`
	Battery     int
	SGV         *int `gorm:"column:sgv"`
	Direction   *string
	Noise       *int
	Filtered    *int
	Unfiltered  *int
	RSSI        *int `gorm:"column:rssi"`
	Slope       *float64
	Intercept   *float64
	Scale       *float64
	RawEstimate *float64
}

func ReadingFromWatchEntry(siteID uint, entry watch.WatchEntry) Reading {
	reading := Reading{
		SiteID:    siteID,
		Timestamp: entry.Timestamp.UTC(),
		Now:       entry.Now.UTC(),
		Device:    entry.Device,
		BGDelta:   entry.BGDelta,
		Battery:   entry.Battery,
	}

	// Copies, so the reading never aliases the caller's entry.
	if entry.SensorGlucoseValue != nil {
		sgv := *entry.SensorGlucoseValue
		direction := string(sgv.Direction)
		noise := int(sgv.Noise)

		reading.SGV = &sgv.SGV
		reading.Direction = &direction
		reading.Noise = &noise
		reading.Filtered = &sgv.Filtered
		reading.Unfiltered = &sgv.Unfiltered
		reading.RSSI = &sgv.RSSI
	}

	if entry.Calibration != nil {
		cal := *entry.Calibration
		reading.Slope = &cal.Slope
		reading.Intercept = &cal.Intercept
		reading.Scale = &cal.Scale
	}

	if entry.RawEstimate != nil {
		raw := *entry.RawEstimate
		reading.RawEstimate = &raw
	}

	return reading
}

// WatchEntry rebuilds the decoded entry. A sensor group with an unknown
// direction or noise value is dropped rather than returned half valid.
func (r Reading) WatchEntry() watch.WatchEntry {
	entry := watch.WatchEntry{
		Entry: watch.Entry{
			Identifier: watch.Identifier,
			Timestamp:  r.Timestamp,
			Device:     r.Device,
		},
		Now:     r.Now,
		BGDelta: r.BGDelta,
		Battery: r.Battery,
	}

	if entry.Device == "" {
		entry.Device = watch.DefaultDevice
	}

	if sgv, ok := r.sensorGlucoseValue(); ok {
		entry.SensorGlucoseValue = &sgv
	}

	if r.Slope != nil && r.Intercept != nil && r.Scale != nil {
		entry.Calibration = &watch.Calibration{
			Slope:     *r.Slope,
			Intercept: *r.Intercept,
			Scale:     *r.Scale,
		}
	}

	if r.RawEstimate != nil && entry.SensorGlucoseValue != nil && entry.Calibration != nil {
		raw := *r.RawEstimate
		entry.RawEstimate = &raw
	}

	return entry
}

func (r Reading) sensorGlucoseValue() (watch.SensorGlucoseValue, bool) {
	if r.SGV == nil || r.Direction == nil || r.Noise == nil || r.Filtered == nil || r.Unfiltered == nil {
		return watch.SensorGlucoseValue{}, false
	}

	direction, ok := watch.ParseDirection(*r.Direction)
	if !ok {
		return watch.SensorGlucoseValue{}, false
	}

	noise, ok := watch.ParseNoise(*r.Noise)
	if !ok {
		return watch.SensorGlucoseValue{}, false
	}

	sgv := watch.SensorGlucoseValue{
		SGV:        *r.SGV,
		Direction:  direction,
		Filtered:   *r.Filtered,
		Unfiltered: *r.Unfiltered,
		Noise:      noise,
	}
	if r.RSSI != nil {
		sgv.RSSI = *r.RSSI
	}

	return sgv, true
}
