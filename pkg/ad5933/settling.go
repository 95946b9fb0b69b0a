package ad5933

import "fmt"

// SettlingMultiplier scales the settling cycle count.
type SettlingMultiplier uint8

// Multiplier field codes, bits 10..9 of the settling register.
const (
	SettleX1 SettlingMultiplier = 0x0
	SettleX2 SettlingMultiplier = 0x1
	SettleX4 SettlingMultiplier = 0x3
)

// Factor returns the numeric multiplier, or 0 for an unknown code.
func (m SettlingMultiplier) Factor() int {
	switch m {
	case SettleX1:
		return 1
	case SettleX2:
		return 2
	case SettleX4:
		return 4
	}
	return 0
}

// SettlingMultiplierFromFactor maps 1, 2 or 4 to its field code.
func SettlingMultiplierFromFactor(x int) (SettlingMultiplier, error) {
	switch x {
	case 1:
		return SettleX1, nil
	case 2:
		return SettleX2, nil
	case 4:
		return SettleX4, nil
	}
	return 0, fmt.Errorf("%w: settling multiplier x%d", ErrInvalidRange, x)
}

// SettlingConfig is the number of output cycles the device waits after a
// frequency change before the ADC samples.
type SettlingConfig struct {
	Cycles     int
	Multiplier SettlingMultiplier
}

// Effective returns Cycles × multiplier.
func (c SettlingConfig) Effective() int {
	return c.Cycles * c.Multiplier.Factor()
}

// EncodeSettling packs a settling time into the 16-bit value written at
// RegSettlingHB.
//
//	bit 15..11  reserved
//	bit 10..9   multiplier code
//	bit  8..0   cycle count
//
// Requests whose count does not fit 9 bits are promoted to the next
// multiplier, rounding the count up. Effective times above MaxSettlingTime
// fail.
func EncodeSettling(c SettlingConfig) (uint16, error) {
	factor := c.Multiplier.Factor()
	if factor == 0 {
		return 0, fmt.Errorf("%w: settling multiplier code %d", ErrInvalidRange, c.Multiplier)
	}
	if c.Cycles < 0 {
		return 0, fmt.Errorf("%w: settling cycles %d", ErrInvalidRange, c.Cycles)
	}
	eff := c.Effective()
	if eff > MaxSettlingTime {
		return 0, fmt.Errorf("%w: settling time %d cycles exceeds %d", ErrInvalidRange, eff, MaxSettlingTime)
	}

	for _, m := range []SettlingMultiplier{SettleX1, SettleX2, SettleX4} {
		f := m.Factor()
		if f < factor {
			continue
		}
		count := (eff + f - 1) / f
		if count <= MaxSettlingCycles {
			return uint16(m)<<9 | uint16(count), nil
		}
	}
	// unreachable: eff <= 2044 always fits with x4
	return 0, fmt.Errorf("%w: settling time %d cycles", ErrInvalidRange, eff)
}

// DecodeSettling unpacks a settling register value.
func DecodeSettling(v uint16) SettlingConfig {
	return SettlingConfig{
		Cycles:     int(v & 0x1FF),
		Multiplier: SettlingMultiplier(v >> 9 & 0x3),
	}
}
