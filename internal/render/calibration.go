package render

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultHeadroom is the factor applied to the first vector's peak.
	DefaultHeadroom = 1.5

	// DefaultFloor is the ceiling used when the first vector has no energy.
	DefaultFloor = 1e-3
)

// Calibration is the amplitude ceiling fixed from the first band vector of a
// session. It is computed once and never revised; later vectors may exceed
// MaxHeight and it is up to the display to clip them.
type Calibration struct {
	MaxHeight float64 // Display ceiling for every bar
	Peak      float64 // Largest value in the first vector
	Fallback  bool    // True when the first vector was silent and Floor was used
}

// Calibrate returns headroom × max(initial). An empty, all-zero or non-finite
// first vector yields floor instead so the display range is never zero.
func Calibrate(initial []float64, headroom, floor float64) Calibration {
	if len(initial) == 0 {
		return Calibration{MaxHeight: floor, Fallback: true}
	}

	peak := floats.Max(initial)
	if peak <= 0 || math.IsNaN(peak) || math.IsInf(peak, 0) {
		return Calibration{MaxHeight: floor, Peak: peak, Fallback: true}
	}

	return Calibration{MaxHeight: headroom * peak, Peak: peak}
}
