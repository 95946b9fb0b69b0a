// Package concentration maps a relative impedance change onto an analyte
// concentration through an empirically fitted response curve.
package concentration

import (
	"fmt"
	"math"
)

// Error is a constant sentinel error.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrOutOfRange   = Error("delta outside supported range")
	ErrNotMonotonic = Error("response curve is not strictly monotonic")
	ErrInvalidCurve = Error("invalid response curve")
)

// monotonicProbes is the number of intervals the derivative sign is checked
// over when a curve is built.
const monotonicProbes = 256

// Config describes the response curve
//
//	c = c0 + c1·x + c2·x² + …
//
// where x is the impedance change in percent. The curve is only used inside
// [MinDelta, MaxDelta].
type Config struct {
	Coefficients []float64 `yaml:"coefficients"`
	MinDelta     float64   `yaml:"min_delta"`
	MaxDelta     float64   `yaml:"max_delta"`
	Unit         string    `yaml:"unit"`
}

// Estimator evaluates a validated response curve.
type Estimator struct {
	coef     []float64
	min, max float64
	unit     string
	sign     int
}

// New validates cfg and returns an Estimator for it.
func New(cfg Config) (*Estimator, error) {
	if len(cfg.Coefficients) == 0 {
		return nil, fmt.Errorf("%w: no coefficients", ErrInvalidCurve)
	}
	for i, c := range cfg.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: coefficient %d is %g", ErrInvalidCurve, i, c)
		}
	}
	if !(cfg.MinDelta < cfg.MaxDelta) {
		return nil, fmt.Errorf("%w: range [%g, %g]", ErrInvalidCurve, cfg.MinDelta, cfg.MaxDelta)
	}

	e := &Estimator{
		coef: append([]float64(nil), cfg.Coefficients...),
		min:  cfg.MinDelta,
		max:  cfg.MaxDelta,
		unit: cfg.Unit,
	}
	sign, err := e.monotonic()
	if err != nil {
		return nil, err
	}
	e.sign = sign
	return e, nil
}

// monotonic samples the curve across its range and returns +1 when it rises
// and -1 when it falls.
func (e *Estimator) monotonic() (int, error) {
	step := (e.max - e.min) / monotonicProbes
	prev := e.eval(e.min)
	sign := 0
	for i := 1; i <= monotonicProbes; i++ {
		x := e.min + float64(i)*step
		if i == monotonicProbes {
			x = e.max
		}
		v := e.eval(x)
		d := 0
		switch {
		case v > prev:
			d = 1
		case v < prev:
			d = -1
		}
		if d == 0 || (sign != 0 && d != sign) {
			return 0, fmt.Errorf("%w: between %g%% and %g%%", ErrNotMonotonic, x-step, x)
		}
		sign = d
		prev = v
	}
	return sign, nil
}

// eval evaluates the polynomial with Horner's scheme.
func (e *Estimator) eval(x float64) float64 {
	var v float64
	for i := len(e.coef) - 1; i >= 0; i-- {
		v = v*x + e.coef[i]
	}
	return v
}

// Estimate returns the concentration for an impedance change in percent.
func (e *Estimator) Estimate(delta float64) (float64, error) {
	if math.IsNaN(delta) || delta < e.min || delta > e.max {
		return 0, fmt.Errorf("%w: %g%% not in [%g%%, %g%%]", ErrOutOfRange, delta, e.min, e.max)
	}
	return e.eval(delta), nil
}

// Range returns the supported delta range in percent.
func (e *Estimator) Range() (min, max float64) {
	return e.min, e.max
}

// Increasing reports whether concentration rises with delta.
func (e *Estimator) Increasing() bool {
	return e.sign > 0
}

// Unit returns the configured concentration unit.
func (e *Estimator) Unit() string {
	return e.unit
}

// DeltaPercent returns the change of z relative to baseline in percent.
func DeltaPercent(baseline, z float64) (float64, error) {
	if baseline == 0 || math.IsNaN(baseline) || math.IsInf(baseline, 0) {
		return 0, fmt.Errorf("%w: baseline %g", ErrInvalidCurve, baseline)
	}
	return (z - baseline) / baseline * 100, nil
}
