package calib

import (
	"fmt"
	"slices"
)

const (
	// DefaultMaxSpan is the interpolation bound in Hz used when none is configured.
	DefaultMaxSpan = 10000
	// Unbounded lets a table interpolate across intervals of any width.
	// A single anchor is still only valid at its own frequency.
	Unbounded = -1
)

// Table holds calibration anchors measured directly and interpolates between
// neighbouring anchors. MaxSpan bounds the width in Hz of any interval the
// table will interpolate across.
type Table struct {
	anchors []Point
	maxSpan int
}

// NewTable creates a table from anchors in any order. maxSpan must be
// positive or Unbounded. Anchors sharing a frequency are rejected.
func NewTable(maxSpan int, anchors ...Point) (*Table, error) {
	if maxSpan <= 0 && maxSpan != Unbounded {
		return nil, fmt.Errorf("invalid span %d Hz", maxSpan)
	}
	t := &Table{maxSpan: maxSpan}
	for _, a := range anchors {
		if err := t.Add(a); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add inserts an anchor keeping the table sorted by frequency.
func (t *Table) Add(p Point) error {
	if !p.Valid() {
		return fmt.Errorf("%w: gain factor %g at %d Hz", ErrInvalidReference, p.GainFactor, p.Frequency)
	}
	i, found := slices.BinarySearchFunc(t.anchors, p.Frequency, func(a Point, hz int) int {
		return a.Frequency - hz
	})
	if found {
		return fmt.Errorf("duplicate calibration anchor at %d Hz", p.Frequency)
	}
	t.anchors = slices.Insert(t.anchors, i, p)
	return nil
}

// Anchors returns a copy of the anchors in ascending frequency.
func (t *Table) Anchors() []Point {
	return slices.Clone(t.anchors)
}

// Len returns the number of anchors.
func (t *Table) Len() int {
	return len(t.anchors)
}

// MaxSpan returns the interpolation bound in Hz, or Unbounded.
func (t *Table) MaxSpan() int {
	return t.maxSpan
}

// At returns the calibration at hz.
func (t *Table) At(hz int) (Point, error) {
	if t == nil || len(t.anchors) == 0 {
		return Point{}, ErrCalibrationMissing
	}

	i, found := slices.BinarySearchFunc(t.anchors, hz, func(a Point, hz int) int {
		return a.Frequency - hz
	})
	if found {
		return t.anchors[i], nil
	}

	if i == 0 || i == len(t.anchors) {
		if len(t.anchors) == 1 {
			return t.hold(t.anchors[0], hz)
		}
		first, last := t.anchors[0].Frequency, t.anchors[len(t.anchors)-1].Frequency
		return Point{}, fmt.Errorf("%w: %d Hz not in [%d, %d] Hz", ErrOutOfRange, hz, first, last)
	}

	lo, hi := t.anchors[i-1], t.anchors[i]
	if span := hi.Frequency - lo.Frequency; t.maxSpan != Unbounded && span > t.maxSpan {
		return Point{}, fmt.Errorf("%w: %d Hz between %d and %d Hz, limit %d Hz",
			ErrSpanExceeded, span, lo.Frequency, hi.Frequency, t.maxSpan)
	}
	return InterpolateFrequency(lo, hi, float64(hz)), nil
}

// hold extends a single anchor to hz when hz lies within MaxSpan.
func (t *Table) hold(p Point, hz int) (Point, error) {
	d := hz - p.Frequency
	if d < 0 {
		d = -d
	}
	if t.maxSpan == Unbounded || d > t.maxSpan {
		return Point{}, fmt.Errorf("%w: %d Hz is %d Hz from the only anchor", ErrOutOfRange, hz, d)
	}
	p.Frequency = hz
	return p, nil
}

// GainDrift returns the change of gain factor per Hz between the outermost
// anchors, or 0 with fewer than two anchors.
func (t *Table) GainDrift() float64 {
	if t == nil || len(t.anchors) < 2 {
		return 0
	}
	first, last := t.anchors[0], t.anchors[len(t.anchors)-1]
	return (last.GainFactor - first.GainFactor) / float64(last.Frequency-first.Frequency)
}
