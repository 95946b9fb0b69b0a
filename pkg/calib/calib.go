// Package calib derives gain factor and phase calibration from measurements
// of a known reference impedance and interpolates it across a sweep.
package calib

import (
	"fmt"
	"math"

	"github.com/itohio/goimp/pkg/ad5933"
)

// Error is a constant sentinel error.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrCalibrationMissing = Error("calibration missing")
	ErrInvalidReference   = Error("invalid calibration reference")
	ErrSpanExceeded       = Error("calibration interval exceeds allowed span")
	ErrOutOfRange         = Error("frequency outside calibrated range")
)

// Point is the calibration valid at one frequency.
type Point struct {
	Frequency   int     `yaml:"frequency"`    // Hz
	GainFactor  float64 `yaml:"gain_factor"`  // 1/(Ω·count)
	PhaseOffset float64 `yaml:"phase_offset"` // radians
}

// Reference is a component of accurately known impedance substituted for the
// sensor during calibration.
type Reference struct {
	Frequency int     // Hz
	Impedance float64 // Ω, magnitude
	Phase     float64 // radians, 0 for a resistor
}

// Calibrate computes the calibration at ref.Frequency from a sample taken
// with the reference attached:
//
//	gain factor  = 1 / (|raw| × |Zref|)
//	phase offset = atan2(imag, real) − phase(Zref)
func Calibrate(raw ad5933.RawSample, ref Reference) (Point, error) {
	if !(ref.Impedance > 0) || math.IsInf(ref.Impedance, 0) {
		return Point{}, fmt.Errorf("%w: impedance %g Ω", ErrInvalidReference, ref.Impedance)
	}
	mag := raw.Magnitude()
	if mag == 0 {
		return Point{}, fmt.Errorf("%w: zero magnitude at %d Hz", ErrInvalidReference, ref.Frequency)
	}
	return Point{
		Frequency:   ref.Frequency,
		GainFactor:  1 / (mag * ref.Impedance),
		PhaseOffset: raw.Phase() - ref.Phase,
	}, nil
}

// Valid reports whether p holds a usable gain factor.
func (p Point) Valid() bool {
	return p.GainFactor != 0 && !math.IsNaN(p.GainFactor) && !math.IsInf(p.GainFactor, 0)
}

// Interpolate returns the calibration for step of steps between start and
// end. Gain factor and phase offset move linearly with step/steps and equal
// start at step 0 and end at step == steps exactly.
func Interpolate(start, end Point, step, steps int) Point {
	if steps == 0 {
		return start
	}
	t := float64(step) / float64(steps)
	return Point{
		Frequency:   start.Frequency + int(math.Round(float64(end.Frequency-start.Frequency)*t)),
		GainFactor:  lerp(start.GainFactor, end.GainFactor, t),
		PhaseOffset: lerp(start.PhaseOffset, end.PhaseOffset, t),
	}
}

// InterpolateFrequency is Interpolate indexed by frequency instead of step.
func InterpolateFrequency(start, end Point, hz float64) Point {
	span := float64(end.Frequency - start.Frequency)
	if span == 0 {
		return start
	}
	t := (hz - float64(start.Frequency)) / span
	return Point{
		Frequency:   int(math.Round(hz)),
		GainFactor:  lerp(start.GainFactor, end.GainFactor, t),
		PhaseOffset: lerp(start.PhaseOffset, end.PhaseOffset, t),
	}
}

// lerp is exact at t == 0 and t == 1.
func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}
