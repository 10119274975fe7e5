package watch

import (
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecondsToTimestamp(t *testing.T) {
	assert.True(t, SecondsToTimestamp(0).Equal(time.Unix(0, 0)))
	assert.True(t, SecondsToTimestamp(1000).Equal(time.Unix(1000, 0)))
	assert.True(t, SecondsToTimestamp(-60).Equal(time.Unix(-60, 0)))
	assert.True(t, SecondsToTimestamp(1.5).Equal(time.Unix(1, int64(500*time.Millisecond))))
	assert.Equal(t, time.UTC, SecondsToTimestamp(1000).Location())
}

func TestMillisecondsToTimestamp(t *testing.T) {
	assert.True(t, MillisecondsToTimestamp(1000).Equal(time.Unix(1, 0)))
	assert.True(t, MillisecondsToTimestamp(1700000000123).Equal(time.UnixMilli(1700000000123)))
}

func TestEpochUnitToTimestamp(t *testing.T) {
	assert.True(t, EpochSeconds.ToTimestamp(1000).Equal(time.Unix(1000, 0)))
	assert.True(t, EpochMilliseconds.ToTimestamp(1000).Equal(time.Unix(1, 0)))
}

func TestParseEpochUnit(t *testing.T) {
	unit, err := ParseEpochUnit("")
	assert.NoError(t, err)
	assert.Equal(t, EpochSeconds, unit)

	unit, err = ParseEpochUnit("milliseconds")
	assert.NoError(t, err)
	assert.Equal(t, EpochMilliseconds, unit)

	_, err = ParseEpochUnit("minutes")
	assert.Error(t, err)
}

func TestStringToIntRoundTrip(t *testing.T) {
	values := []int{0, 1, -1, 42, -273, 120, math.MaxInt32, math.MinInt32, math.MaxInt, math.MinInt}

	for _, value := range values {
		parsed, err := StringToInt(strconv.Itoa(value))
		require.NoError(t, err)
		assert.Equal(t, value, parsed)
	}
}

func TestStringToIntWhenInvalidThenParseError(t *testing.T) {
	for _, value := range []string{"abc", "", "12.5", " 12", "12 ", "0x10", "99999999999999999999"} {
		_, err := StringToInt(value)

		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr), value)
		assert.Equal(t, value, parseErr.Value)
		assert.True(t, errors.Is(err, strconv.ErrSyntax) || errors.Is(err, strconv.ErrRange))
	}
}

func TestParseDirection(t *testing.T) {
	direction, ok := ParseDirection("DoubleDown")
	assert.True(t, ok)
	assert.Equal(t, DirectionDoubleDown, direction)

	direction, ok = ParseDirection("NOT COMPUTABLE")
	assert.True(t, ok)
	assert.Equal(t, DirectionNotComputable, direction)

	_, ok = ParseDirection("flat")
	assert.False(t, ok)
}

func TestParseNoise(t *testing.T) {
	noise, ok := ParseNoise(4)
	assert.True(t, ok)
	assert.Equal(t, NoiseHeavy, noise)
	assert.Equal(t, "Heavy", noise.String())

	_, ok = ParseNoise(-1)
	assert.False(t, ok)
	assert.Equal(t, "Invalid", Noise(6).String())
}
