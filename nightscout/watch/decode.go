package watch

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	statusKey     = "status"
	nowKey        = "now"
	bgsKey        = "bgs"
	directionKey  = "direction"
	filteredKey   = "filtered"
	unfilteredKey = "unfiltered"
	noiseKey      = "noise"
	datetimeKey   = "datetime"
	batteryKey    = "battery"
	bgdeltaKey    = "bgdelta"
	sgvKey        = "sgv"
	calsKey       = "cals"
	slopeKey      = "slope"
	interceptKey  = "intercept"
	scaleKey      = "scale"
)

type Clock func() time.Time

type Decoder struct {
	clock     Clock
	epochUnit EpochUnit
	logger    logrus.FieldLogger
}

type Option func(*Decoder)

// WithClock replaces the wall clock used for "now" and the reading timestamp
// when the payload does not provide them.
func WithClock(clock Clock) Option {
	return func(decoder *Decoder) {
		decoder.clock = clock
	}
}

func WithEpochUnit(unit EpochUnit) Option {
	return func(decoder *Decoder) {
		decoder.epochUnit = unit
	}
}

// WithLogger receives a debug line for every group that was abandoned.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(decoder *Decoder) {
		decoder.logger = logger
	}
}

func NewDecoder(options ...Option) *Decoder {
	decoder := &Decoder{
		clock:     time.Now,
		epochUnit: EpochSeconds,
	}

	for _, option := range options {
		option(decoder)
	}

	return decoder
}

var defaultDecoder = NewDecoder()

// Decode converts a raw watch payload using the system clock and epoch
// seconds.
func Decode(raw map[string]interface{}) WatchEntry {
	return defaultDecoder.Decode(raw)
}

// Decode never fails. Groups that cannot be decoded leave their fields at the
// defaults: the decode time for Now and Timestamp, zero for Battery and
// BGDelta, nil for the optional sub entities.
func (decoder *Decoder) Decode(raw map[string]interface{}) WatchEntry {
	decodedAt := decoder.clock()

	entry := WatchEntry{
		Entry: Entry{
			Identifier: Identifier,
			Timestamp:  decodedAt,
			Device:     DefaultDevice,
		},
		Now: decodedAt,
	}

	groups := normalize(raw)

	if now, err := decoder.decodeNow(groups); err != nil {
		decoder.abandon(statusKey, err)
	} else {
		entry.Now = now
	}

	if reading, err := decoder.decodeReading(groups); err != nil {
		decoder.abandon(bgsKey, err)
	} else {
		entry.SensorGlucoseValue = &reading.sgv
		entry.Timestamp = reading.timestamp
		entry.Battery = reading.battery
		entry.BGDelta = reading.bgDelta
	}

	if calibration, err := decoder.decodeCalibration(groups); err != nil {
		decoder.abandon(calsKey, err)
	} else {
		entry.Calibration = calibration
	}

	if entry.SensorGlucoseValue != nil && entry.Calibration != nil {
		if estimate, ok := RawEstimate(*entry.SensorGlucoseValue, *entry.Calibration); ok {
			entry.RawEstimate = &estimate
		}
	}

	return entry
}

func (decoder *Decoder) decodeNow(groups map[string]record) (time.Time, error) {
	status, ok := groups[statusKey]
	if !ok {
		return time.Time{}, &MissingFieldError{Group: statusKey}
	}

	now, err := status.number(nowKey)
	if err != nil {
		return time.Time{}, err
	}

	return decoder.epochUnit.ToTimestamp(now), nil
}

type reading struct {
	sgv       SensorGlucoseValue
	timestamp time.Time
	battery   int
	bgDelta   int
}

// decodeReading is all or nothing. Battery, bgdelta and the timestamp are only
// reported when every field through sgv decoded. The coupling is deliberate
// and kept as is until the source API's contract is confirmed.
func (decoder *Decoder) decodeReading(groups map[string]record) (*reading, error) {
	bgs, ok := groups[bgsKey]
	if !ok {
		return nil, &MissingFieldError{Group: bgsKey}
	}

	directionTag, err := bgs.string(directionKey)
	if err != nil {
		return nil, err
	}

	direction, ok := ParseDirection(directionTag)
	if !ok {
		return nil, &UnknownEnumTagError{Group: bgsKey, Field: directionKey, Tag: directionTag}
	}

	filtered, err := bgs.integer(filteredKey)
	if err != nil {
		return nil, err
	}

	unfiltered, err := bgs.integer(unfilteredKey)
	if err != nil {
		return nil, err
	}

	noiseValue, err := bgs.integer(noiseKey)
	if err != nil {
		return nil, err
	}

	noise, ok := ParseNoise(noiseValue)
	if !ok {
		return nil, &UnknownEnumTagError{Group: bgsKey, Field: noiseKey, Tag: noiseValue}
	}

	datetime, err := bgs.number(datetimeKey)
	if err != nil {
		return nil, err
	}

	battery, err := bgs.integerString(batteryKey)
	if err != nil {
		return nil, err
	}

	bgDelta, err := bgs.integer(bgdeltaKey)
	if err != nil {
		return nil, err
	}

	sgv, err := bgs.integerString(sgvKey)
	if err != nil {
		return nil, err
	}

	return &reading{
		sgv: SensorGlucoseValue{
			SGV:        sgv,
			Direction:  direction,
			Filtered:   filtered,
			Unfiltered: unfiltered,
			RSSI:       0,
			Noise:      noise,
		},
		timestamp: decoder.epochUnit.ToTimestamp(datetime),
		battery:   battery,
		bgDelta:   bgDelta,
	}, nil
}

func (decoder *Decoder) decodeCalibration(groups map[string]record) (*Calibration, error) {
	cals, ok := groups[calsKey]
	if !ok {
		return nil, &MissingFieldError{Group: calsKey}
	}

	slope, err := cals.number(slopeKey)
	if err != nil {
		return nil, err
	}

	intercept, err := cals.number(interceptKey)
	if err != nil {
		return nil, err
	}

	scale, err := cals.number(scaleKey)
	if err != nil {
		return nil, err
	}

	return &Calibration{Slope: slope, Scale: scale, Intercept: intercept}, nil
}

func (decoder *Decoder) abandon(group string, err error) {
	if decoder.logger == nil {
		return
	}

	decoder.logger.WithFields(logrus.Fields{
		"group": group,
		"error": err.Error(),
	}).Debug("Watch payload group not decoded")
}
