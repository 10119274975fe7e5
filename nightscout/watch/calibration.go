package watch

import (
	"math"
)

// SGV values below 40 are sensor error codes.
const minimumCalibratedSGV = 40

// RawEstimate converts the sensor's raw signal into an uncalibrated glucose
// estimate. The second result is false when the calibration produces a
// non-finite value, for example when filtered equals the intercept.
func RawEstimate(sgv SensorGlucoseValue, calibration Calibration) (float64, bool) {
	filtered := float64(sgv.Filtered)
	unfiltered := float64(sgv.Unfiltered)
	glucose := float64(sgv.SGV)

	var raw float64

	switch {
	case calibration.Slope == 0 || unfiltered == 0 || calibration.Scale == 0:
		raw = 0
	case filtered == 0 || glucose < minimumCalibratedSGV:
		raw = calibration.Scale * (unfiltered - calibration.Intercept) / calibration.Slope
	default:
		ratio := calibration.Scale * (filtered - calibration.Intercept) / calibration.Slope / glucose
		raw = calibration.Scale * (unfiltered - calibration.Intercept) / calibration.Slope / ratio
	}

	if math.IsInf(raw, 0) || math.IsNaN(raw) {
		return 0, false
	}

	return math.Round(raw), true
}
