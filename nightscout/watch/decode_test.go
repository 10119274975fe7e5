package watch

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decodeTime = time.Date(2024, time.March, 3, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return decodeTime
}

func newTestDecoder(options ...Option) *Decoder {
	return NewDecoder(append([]Option{WithClock(fixedClock)}, options...)...)
}

func createStatus() map[string]interface{} {
	return map[string]interface{}{"now": 1000}
}

func createBGs() map[string]interface{} {
	return map[string]interface{}{
		"direction":  "Flat",
		"filtered":   100,
		"unfiltered": 110,
		"noise":      1,
		"datetime":   1000,
		"battery":    "80",
		"bgdelta":    -2,
		"sgv":        "120",
	}
}

func createCals() map[string]interface{} {
	return map[string]interface{}{
		"slope":     1.0,
		"intercept": 0,
		"scale":     1.0,
	}
}

func createPayload(status, bgs, cals map[string]interface{}) map[string]interface{} {
	payload := map[string]interface{}{}
	if status != nil {
		payload["status"] = []interface{}{status}
	}
	if bgs != nil {
		payload["bgs"] = []interface{}{bgs}
	}
	if cals != nil {
		payload["cals"] = []interface{}{cals}
	}
	return payload
}

func TestDecodeCompletePayload(t *testing.T) {
	entry := newTestDecoder().Decode(createPayload(createStatus(), createBGs(), createCals()))

	assert.Equal(t, Identifier, entry.Identifier)
	assert.Equal(t, DefaultDevice, entry.Device)
	assert.True(t, entry.Now.Equal(time.Unix(1000, 0)))
	assert.True(t, entry.Timestamp.Equal(time.Unix(1000, 0)))
	assert.Equal(t, 80, entry.Battery)
	assert.Equal(t, -2, entry.BGDelta)

	require.NotNil(t, entry.SensorGlucoseValue)
	assert.Equal(t, SensorGlucoseValue{
		SGV:        120,
		Direction:  DirectionFlat,
		Filtered:   100,
		Unfiltered: 110,
		RSSI:       0,
		Noise:      NoiseClean,
	}, *entry.SensorGlucoseValue)

	require.NotNil(t, entry.Calibration)
	assert.Equal(t, Calibration{Slope: 1.0, Scale: 1.0, Intercept: 0}, *entry.Calibration)

	require.NotNil(t, entry.RawEstimate)
	assert.Equal(t, 132.0, *entry.RawEstimate)
}

func TestDecodeJSONPayload(t *testing.T) {
	body := []byte(`{
		"status": [{"now": 1000}],
		"bgs": [{"direction": "FortyFiveUp", "filtered": 100, "unfiltered": 110, "noise": 2,
			"datetime": 1000, "battery": "80", "bgdelta": 3, "sgv": "120"}],
		"cals": [{"slope": 1.0, "intercept": 0, "scale": 1.0}]
	}`)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &payload))

	entry := newTestDecoder().Decode(payload)

	require.NotNil(t, entry.SensorGlucoseValue)
	assert.Equal(t, DirectionFortyFiveUp, entry.SensorGlucoseValue.Direction)
	assert.Equal(t, NoiseLight, entry.SensorGlucoseValue.Noise)
	assert.Equal(t, 3, entry.BGDelta)
	assert.NotNil(t, entry.RawEstimate)
}

func TestDecodeJSONPayloadWithUseNumber(t *testing.T) {
	body := `{"bgs": [{"direction": "Flat", "filtered": 100, "unfiltered": 110, "noise": 1,
		"datetime": 1000, "battery": "80", "bgdelta": -2, "sgv": "120"}]}`

	decoder := json.NewDecoder(bytes.NewBufferString(body))
	decoder.UseNumber()

	var payload map[string]interface{}
	require.NoError(t, decoder.Decode(&payload))

	entry := newTestDecoder().Decode(payload)

	require.NotNil(t, entry.SensorGlucoseValue)
	assert.Equal(t, -2, entry.BGDelta)
}

func TestDecodeWhenCalsMissingThenCalibrationAndRawAbsent(t *testing.T) {
	entry := newTestDecoder().Decode(createPayload(createStatus(), createBGs(), nil))

	assert.NotNil(t, entry.SensorGlucoseValue)
	assert.Nil(t, entry.Calibration)
	assert.Nil(t, entry.RawEstimate)
}

func TestDecodeWhenBGsMissingThenReadingAndRawAbsent(t *testing.T) {
	entry := newTestDecoder().Decode(createPayload(createStatus(), nil, createCals()))

	assert.Nil(t, entry.SensorGlucoseValue)
	assert.NotNil(t, entry.Calibration)
	assert.Nil(t, entry.RawEstimate)
	assert.Equal(t, decodeTime, entry.Timestamp)
}

func TestDecodeWhenSGVNotNumericThenDependentFieldsKeepDefaults(t *testing.T) {
	bgs := createBGs()
	bgs["sgv"] = "abc"

	entry := newTestDecoder().Decode(createPayload(createStatus(), bgs, createCals()))

	assert.Nil(t, entry.SensorGlucoseValue)
	assert.Nil(t, entry.RawEstimate)
	assert.Equal(t, 0, entry.Battery)
	assert.Equal(t, 0, entry.BGDelta)
	assert.Equal(t, decodeTime, entry.Timestamp)
	assert.NotNil(t, entry.Calibration)
}

func TestDecodeWhenDirectionUnknownThenReadingAbsent(t *testing.T) {
	bgs := createBGs()
	bgs["direction"] = "Sideways"

	entry := newTestDecoder().Decode(createPayload(createStatus(), bgs, createCals()))

	assert.Nil(t, entry.SensorGlucoseValue)
	assert.Nil(t, entry.RawEstimate)
}

func TestDecodeWhenNoiseUnknownThenReadingAbsent(t *testing.T) {
	bgs := createBGs()
	bgs["noise"] = 9

	entry := newTestDecoder().Decode(createPayload(createStatus(), bgs, nil))

	assert.Nil(t, entry.SensorGlucoseValue)
}

func TestDecodeWhenBatteryNotNumericThenReadingAbsent(t *testing.T) {
	bgs := createBGs()
	bgs["battery"] = "full"

	entry := newTestDecoder().Decode(createPayload(createStatus(), bgs, nil))

	assert.Nil(t, entry.SensorGlucoseValue)
	assert.Equal(t, 0, entry.Battery)
}

func TestDecodeWhenFieldHasWrongWireTypeThenReadingAbsent(t *testing.T) {
	cases := map[string]struct {
		field string
		value interface{}
	}{
		"filtered as string":          {"filtered", "100"},
		"unfiltered with fraction":    {"unfiltered", 110.5},
		"noise as string":             {"noise", "1"},
		"datetime as string":          {"datetime", "1000"},
		"battery as number":           {"battery", 80},
		"bgdelta as string":           {"bgdelta", "-2"},
		"sgv as number":               {"sgv", 120},
		"direction as number":         {"direction", 4},
		"filtered above int range":    {"filtered", 1e20},
		"bgdelta below int range":     {"bgdelta", -1e30},
		"unfiltered at int upper end": {"unfiltered", 9223372036854775808.0},
		"datetime as json overflow":   {"datetime", json.Number("100000000000000000000")},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			bgs := createBGs()
			bgs[c.field] = c.value

			entry := newTestDecoder().Decode(createPayload(createStatus(), bgs, createCals()))

			assert.Nil(t, entry.SensorGlucoseValue)
			assert.Nil(t, entry.RawEstimate)
			assert.Equal(t, 0, entry.Battery)
			assert.Equal(t, 0, entry.BGDelta)
		})
	}
}

func TestDecodeWhenFieldMissingOrNullThenReadingAbsent(t *testing.T) {
	for field := range createBGs() {
		t.Run(field, func(t *testing.T) {
			missing := createBGs()
			delete(missing, field)
			null := createBGs()
			null[field] = nil

			assert.Nil(t, newTestDecoder().Decode(createPayload(nil, missing, nil)).SensorGlucoseValue)
			assert.Nil(t, newTestDecoder().Decode(createPayload(nil, null, nil)).SensorGlucoseValue)
		})
	}
}

func TestDecodeWhenCalibrationIncompleteThenCalibrationAbsent(t *testing.T) {
	for field := range createCals() {
		t.Run(field, func(t *testing.T) {
			cals := createCals()
			delete(cals, field)

			entry := newTestDecoder().Decode(createPayload(createStatus(), createBGs(), cals))

			assert.Nil(t, entry.Calibration)
			assert.Nil(t, entry.RawEstimate)
			assert.NotNil(t, entry.SensorGlucoseValue)
		})
	}
}

func TestDecodeWhenStatusMissingThenNowFromClock(t *testing.T) {
	entry := newTestDecoder().Decode(createPayload(nil, createBGs(), createCals()))

	assert.Equal(t, decodeTime, entry.Now)
}

func TestDecodeWhenPayloadEmptyThenDefaults(t *testing.T) {
	entry := newTestDecoder().Decode(map[string]interface{}{})

	assert.Equal(t, WatchEntry{
		Entry: Entry{Identifier: Identifier, Timestamp: decodeTime, Device: DefaultDevice},
		Now:   decodeTime,
	}, entry)
}

func TestDecodeWhenPayloadNilThenDefaults(t *testing.T) {
	entry := newTestDecoder().Decode(nil)

	assert.Nil(t, entry.SensorGlucoseValue)
	assert.Equal(t, decodeTime, entry.Now)
}

func TestDecodeWhenWrapperMalformedThenGroupSkipped(t *testing.T) {
	payload := map[string]interface{}{
		"status": []interface{}{},
		"bgs":    createBGs(),
		"cals":   []interface{}{"not a record"},
	}

	entry := newTestDecoder().Decode(payload)

	assert.Equal(t, decodeTime, entry.Now)
	assert.Nil(t, entry.SensorGlucoseValue)
	assert.Nil(t, entry.Calibration)
}

func TestDecodeUsesFirstWrappedRecord(t *testing.T) {
	second := createBGs()
	second["sgv"] = "200"
	payload := createPayload(createStatus(), nil, nil)
	payload["bgs"] = []interface{}{createBGs(), second}

	entry := newTestDecoder().Decode(payload)

	require.NotNil(t, entry.SensorGlucoseValue)
	assert.Equal(t, 120, entry.SensorGlucoseValue.SGV)
}

func TestDecodeIsIdempotent(t *testing.T) {
	payload := createPayload(createStatus(), createBGs(), createCals())
	decoder := NewDecoder()

	first := decoder.Decode(payload)
	second := decoder.Decode(payload)

	assert.Equal(t, first, second)
}

func TestDecodeWithoutStatusIsIdempotentExceptNow(t *testing.T) {
	payload := createPayload(nil, createBGs(), createCals())
	decoder := NewDecoder()

	first := decoder.Decode(payload)
	second := decoder.Decode(payload)
	first.Now, second.Now = time.Time{}, time.Time{}

	assert.Equal(t, first, second)
}

func TestDecodeWithMillisecondEpochs(t *testing.T) {
	status := map[string]interface{}{"now": 1700000000000.0}
	bgs := createBGs()
	bgs["datetime"] = 1699999990000.0

	entry := newTestDecoder(WithEpochUnit(EpochMilliseconds)).Decode(createPayload(status, bgs, nil))

	assert.True(t, entry.Now.Equal(time.Unix(1700000000, 0)))
	assert.True(t, entry.Timestamp.Equal(time.Unix(1699999990, 0)))
}

func TestDecodeLogsAbandonedGroups(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	bgs := createBGs()
	bgs["direction"] = "Sideways"

	newTestDecoder(WithLogger(logger)).Decode(createPayload(createStatus(), bgs, nil))

	require.Len(t, hook.AllEntries(), 2)
	groups := []interface{}{hook.AllEntries()[0].Data["group"], hook.AllEntries()[1].Data["group"]}
	assert.ElementsMatch(t, []interface{}{"bgs", "cals"}, groups)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}

func TestPackageDecodeUsesDefaults(t *testing.T) {
	entry := Decode(createPayload(createStatus(), createBGs(), createCals()))

	assert.Equal(t, Identifier, entry.Identifier)
	assert.NotNil(t, entry.RawEstimate)
}

func TestDecodeSharedDecoderConcurrently(t *testing.T) {
	decoder := newTestDecoder(WithEpochUnit(EpochMilliseconds))
	payload := createPayload(createStatus(), createBGs(), createCals())
	expected := decoder.Decode(payload)

	const workers = 16
	results := make([]WatchEntry, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = decoder.Decode(payload)
		}(i)
	}
	wg.Wait()

	for _, result := range results {
		assert.Equal(t, expected, result)
	}
}
