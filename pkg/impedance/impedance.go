// Package impedance reconstructs complex impedance from raw AD5933 samples
// and their calibration.
package impedance

import (
	"fmt"
	"math"

	"github.com/itohio/goimp/pkg/ad5933"
	"github.com/itohio/goimp/pkg/calib"
)

// MinGainFactor is the smallest gain factor magnitude accepted as a real
// calibration. Gain factors of working front ends lie around 1e-9 to 1e-6.
const MinGainFactor = 1e-15

// ErrNoSignal is returned for a sample with zero magnitude.
const ErrNoSignal = Error("no signal")

// Error is a constant sentinel error.
type Error string

func (e Error) Error() string {
	return string(e)
}

// Sample is the impedance measured at one frequency.
type Sample struct {
	Frequency int     // Hz
	Magnitude float64 // Ω
	Phase     float64 // radians, (−π, π]
}

// PhaseDegrees returns the phase in degrees.
func (s Sample) PhaseDegrees() float64 {
	return Degrees(s.Phase)
}

// Complex returns the impedance as a complex number.
func (s Sample) Complex() complex128 {
	return complex(s.Magnitude*math.Cos(s.Phase), s.Magnitude*math.Sin(s.Phase))
}

// Reconstruct converts a raw sample into impedance using the calibration for
// its frequency:
//
//	|Z| = 1 / (gain factor × |raw|)
//	∠Z  = atan2(imag, real) − phase offset
func Reconstruct(raw ad5933.RawSample, cal calib.Point) (Sample, error) {
	g := cal.GainFactor
	if math.IsNaN(g) || math.IsInf(g, 0) || math.Abs(g) < MinGainFactor {
		return Sample{}, fmt.Errorf("%w: gain factor %g at %d Hz", calib.ErrCalibrationMissing, g, cal.Frequency)
	}
	mag := raw.Magnitude()
	if mag == 0 {
		return Sample{}, fmt.Errorf("%w at %d Hz", ErrNoSignal, cal.Frequency)
	}
	return Sample{
		Frequency: cal.Frequency,
		Magnitude: 1 / (g * mag),
		Phase:     NormalizePhase(raw.Phase() - cal.PhaseOffset),
	}, nil
}

// NormalizePhase wraps a phase into (−π, π].
func NormalizePhase(rad float64) float64 {
	rad = math.Mod(rad, 2*math.Pi)
	switch {
	case rad <= -math.Pi:
		rad += 2 * math.Pi
	case rad > math.Pi:
		rad -= 2 * math.Pi
	}
	return rad
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
