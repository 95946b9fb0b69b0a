package ad5933

import (
	"fmt"
	"math"
)

// SweepConfig describes a linear frequency sweep of Increments+1 points.
type SweepConfig struct {
	StartFrequency     int // Hz
	FrequencyIncrement int // Hz
	Increments         int // 0..MaxIncrements
}

// Points returns the number of measurements the sweep produces.
func (c SweepConfig) Points() int {
	return c.Increments + 1
}

// EndFrequency returns the frequency of the last point.
func (c SweepConfig) EndFrequency() int {
	return c.StartFrequency + c.Increments*c.FrequencyIncrement
}

// Frequency returns the frequency of step i.
func (c SweepConfig) Frequency(i int) int {
	return c.StartFrequency + i*c.FrequencyIncrement
}

// Frequencies returns every frequency of the sweep in order.
func (c SweepConfig) Frequencies() []int {
	out := make([]int, c.Points())
	for i := range out {
		out[i] = c.Frequency(i)
	}
	return out
}

// Clamped returns c with Increments limited to MaxIncrements.
func (c SweepConfig) Clamped() SweepConfig {
	if c.Increments > MaxIncrements {
		c.Increments = MaxIncrements
	}
	return c
}

// Validate checks c against the device limits for the given system clock.
// Frequencies must strictly increase, so a zero increment is only valid for
// a single-point sweep. Increments above MaxIncrements are not an error; see
// Clamped.
func (c SweepConfig) Validate(clock int) error {
	c = c.Clamped()
	switch {
	case c.StartFrequency <= 0:
		return fmt.Errorf("%w: start frequency %d Hz", ErrInvalidRange, c.StartFrequency)
	case c.FrequencyIncrement < 0:
		return fmt.Errorf("%w: frequency increment %d Hz", ErrInvalidRange, c.FrequencyIncrement)
	case c.Increments < 0:
		return fmt.Errorf("%w: increments %d", ErrInvalidRange, c.Increments)
	case c.Increments > 0 && c.FrequencyIncrement == 0:
		return fmt.Errorf("%w: %d increments of 0 Hz", ErrInvalidRange, c.Increments)
	case c.EndFrequency() > MaxFrequency:
		return fmt.Errorf("%w: sweep ends at %d Hz, above %d Hz", ErrInvalidRange, c.EndFrequency(), MaxFrequency)
	}
	for _, f := range []int{c.StartFrequency, c.FrequencyIncrement, c.EndFrequency()} {
		if _, err := FrequencyCode(f, clock); err != nil {
			return err
		}
	}
	return nil
}

// FrequencyCode converts a frequency to the 24-bit register code
// round(f × 2^27 / (clock/4)).
func FrequencyCode(hz, clock int) (uint32, error) {
	if clock <= 0 {
		return 0, fmt.Errorf("%w: system clock %d Hz", ErrInvalidRange, clock)
	}
	code := math.Round(float64(hz) * (1 << 27) / (float64(clock) / 4))
	if code < 0 || code > maxFrequencyCode {
		return 0, fmt.Errorf("%w: frequency %d Hz not encodable at %d Hz clock", ErrInvalidRange, hz, clock)
	}
	return uint32(code), nil
}

// CodeFrequency converts a register code back to hertz.
func CodeFrequency(code uint32, clock int) float64 {
	return float64(code) * (float64(clock) / 4) / (1 << 27)
}
