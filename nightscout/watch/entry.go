package watch

import (
	"time"
)

const (
	Identifier    = "watchFace"
	DefaultDevice = "watchface"
)

type Entry struct {
	Identifier string    `json:"identifier"`
	Timestamp  time.Time `json:"timestamp"`
	Device     string    `json:"device"`
}

// WatchEntry is the decoded form of a watch face payload. SensorGlucoseValue,
// Calibration and RawEstimate are nil when their source group did not decode.
// RawEstimate is never set unless both of the others are.
type WatchEntry struct {
	Entry
	Now                time.Time           `json:"now"`
	BGDelta            int                 `json:"bgdelta"`
	Battery            int                 `json:"battery"`
	SensorGlucoseValue *SensorGlucoseValue `json:"sgv,omitempty"`
	Calibration        *Calibration        `json:"cal,omitempty"`
	RawEstimate        *float64            `json:"raw,omitempty"`
}

type SensorGlucoseValue struct {
	SGV        int       `json:"sgv"`
	Direction  Direction `json:"direction"`
	Filtered   int       `json:"filtered"`
	Unfiltered int       `json:"unfiltered"`
	RSSI       int       `json:"rssi"`
	Noise      Noise     `json:"noise"`
}

type Calibration struct {
	Slope     float64 `json:"slope"`
	Scale     float64 `json:"scale"`
	Intercept float64 `json:"intercept"`
}

type Direction string

const (
	DirectionNone           Direction = "None"
	DirectionDoubleUp       Direction = "DoubleUp"
	DirectionSingleUp       Direction = "SingleUp"
	DirectionFortyFiveUp    Direction = "FortyFiveUp"
	DirectionFlat           Direction = "Flat"
	DirectionFortyFiveDown  Direction = "FortyFiveDown"
	DirectionSingleDown     Direction = "SingleDown"
	DirectionDoubleDown     Direction = "DoubleDown"
	DirectionNotComputable  Direction = "NOT COMPUTABLE"
	DirectionRateOutOfRange Direction = "RATE OUT OF RANGE"
)

var directions = map[string]Direction{
	string(DirectionNone):           DirectionNone,
	string(DirectionDoubleUp):       DirectionDoubleUp,
	string(DirectionSingleUp):       DirectionSingleUp,
	string(DirectionFortyFiveUp):    DirectionFortyFiveUp,
	string(DirectionFlat):           DirectionFlat,
	string(DirectionFortyFiveDown):  DirectionFortyFiveDown,
	string(DirectionSingleDown):     DirectionSingleDown,
	string(DirectionDoubleDown):     DirectionDoubleDown,
	string(DirectionNotComputable):  DirectionNotComputable,
	string(DirectionRateOutOfRange): DirectionRateOutOfRange,
}

// ParseDirection maps a wire tag onto the closed set of trend directions.
// Tags are case sensitive.
func ParseDirection(tag string) (Direction, bool) {
	direction, ok := directions[tag]
	return direction, ok
}

type Noise int

const (
	NoiseNone Noise = iota
	NoiseClean
	NoiseLight
	NoiseMedium
	NoiseHeavy
	NoiseUnknown
)

var noiseNames = map[Noise]string{
	NoiseNone:    "None",
	NoiseClean:   "Clean",
	NoiseLight:   "Light",
	NoiseMedium:  "Medium",
	NoiseHeavy:   "Heavy",
	NoiseUnknown: "Unknown",
}

func ParseNoise(value int) (Noise, bool) {
	noise := Noise(value)
	_, ok := noiseNames[noise]
	return noise, ok
}

func (noise Noise) String() string {
	if name, ok := noiseNames[noise]; ok {
		return name
	}

	return "Invalid"
}
