package models

import (
	"testing"
	"time"

	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeEntry() watch.WatchEntry {
	raw := 132.0

	return watch.WatchEntry{
		Entry: watch.Entry{
			Identifier: watch.Identifier,
			Timestamp:  time.Unix(1000, 0).UTC(),
			Device:     watch.DefaultDevice,
		},
		Now:     time.Unix(1010, 0).UTC(),
		BGDelta: -2,
		Battery: 80,
		SensorGlucoseValue: &watch.SensorGlucoseValue{
			SGV:        120,
			Direction:  watch.DirectionFlat,
			Filtered:   100,
			Unfiltered: 110,
			Noise:      watch.NoiseClean,
		},
		Calibration: &watch.Calibration{Slope: 1, Scale: 1, Intercept: 0},
		RawEstimate: &raw,
	}
}

func TestReadingFromWatchEntryRoundTrip(t *testing.T) {
	entry := completeEntry()

	reading := ReadingFromWatchEntry(7, entry)

	assert.Equal(t, uint(7), reading.SiteID)
	require.NotNil(t, reading.SGV)
	assert.Equal(t, 120, *reading.SGV)
	require.NotNil(t, reading.Direction)
	assert.Equal(t, "Flat", *reading.Direction)
	assert.Equal(t, entry, reading.WatchEntry())
}

func TestReadingDoesNotAliasEntry(t *testing.T) {
	entry := completeEntry()

	reading := ReadingFromWatchEntry(1, entry)
	entry.SensorGlucoseValue.SGV = 400
	entry.Calibration.Slope = 9

	assert.Equal(t, 120, *reading.SGV)
	assert.Equal(t, 1.0, *reading.Slope)
}

func TestReadingPreservesAbsence(t *testing.T) {
	entry := completeEntry()
	entry.SensorGlucoseValue = nil
	entry.RawEstimate = nil
	entry.Battery = 0
	entry.BGDelta = 0

	reading := ReadingFromWatchEntry(1, entry)

	assert.Nil(t, reading.SGV)
	assert.Nil(t, reading.Direction)
	assert.Nil(t, reading.Noise)
	assert.Nil(t, reading.RawEstimate)
	assert.NotNil(t, reading.Slope)

	decoded := reading.WatchEntry()
	assert.Nil(t, decoded.SensorGlucoseValue)
	assert.Nil(t, decoded.RawEstimate)
	assert.NotNil(t, decoded.Calibration)

	entry.Calibration = nil
	decoded = ReadingFromWatchEntry(1, entry).WatchEntry()
	assert.Nil(t, decoded.Calibration)
}

func TestReadingWithUnknownDirectionDropsSensorGroup(t *testing.T) {
	reading := ReadingFromWatchEntry(1, completeEntry())
	unknown := "Sideways"
	reading.Direction = &unknown

	entry := reading.WatchEntry()

	assert.Nil(t, entry.SensorGlucoseValue)
	assert.Nil(t, entry.RawEstimate)
	assert.NotNil(t, entry.Calibration)
}

func TestReadingDefaultsDevice(t *testing.T) {
	reading := Reading{Timestamp: time.Unix(1000, 0)}

	assert.Equal(t, watch.DefaultDevice, reading.WatchEntry().Device)
}
