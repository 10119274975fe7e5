package watch

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

type EpochUnit string

const (
	EpochSeconds      EpochUnit = "seconds"
	EpochMilliseconds EpochUnit = "milliseconds"
)

func ParseEpochUnit(value string) (EpochUnit, error) {
	switch EpochUnit(value) {
	case EpochSeconds, "":
		return EpochSeconds, nil
	case EpochMilliseconds:
		return EpochMilliseconds, nil
	default:
		return "", fmt.Errorf("unknown epoch unit %q", value)
	}
}

// SecondsToTimestamp interprets value as Unix epoch seconds. The fractional
// part is kept as sub-second precision.
func SecondsToTimestamp(value float64) time.Time {
	seconds, fraction := math.Modf(value)
	return time.Unix(int64(seconds), int64(fraction*float64(time.Second))).UTC()
}

func MillisecondsToTimestamp(value float64) time.Time {
	milliseconds, fraction := math.Modf(value)
	return time.UnixMilli(int64(milliseconds)).
		Add(time.Duration(fraction * float64(time.Millisecond))).
		UTC()
}

func (unit EpochUnit) ToTimestamp(value float64) time.Time {
	if unit == EpochMilliseconds {
		return MillisecondsToTimestamp(value)
	}

	return SecondsToTimestamp(value)
}

type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q as an integer: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StringToInt parses a base 10 integer. Surrounding whitespace, signs other
// than a single leading one, and fractions are rejected.
func StringToInt(value string) (int, error) {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ParseError{Value: value, Err: err}
	}

	return parsed, nil
}
