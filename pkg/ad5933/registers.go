// Package ad5933 drives the AD5933 impedance converter: register map,
// bit-field codecs, the function state machine and frequency sweeps.
//
// Datasheet: https://www.analog.com/media/en/technical-documentation/data-sheets/AD5933.pdf
package ad5933

// Register addresses. Multi-byte registers are big-endian.
const (
	RegControlHB   byte = 0x80 // function, range, PGA gain
	RegControlLB   byte = 0x81 // reset, clock source
	RegStartFreq   byte = 0x82 // 3 bytes
	RegFreqInc     byte = 0x85 // 3 bytes
	RegIncNum      byte = 0x88 // 2 bytes, 9 bits used
	RegSettlingHB  byte = 0x8A // multiplier + cycles bit 8
	RegSettlingLB  byte = 0x8B // cycles bits 7..0
	RegStatus      byte = 0x8F
	RegTemperature byte = 0x92 // 2 bytes
	RegRealData    byte = 0x94 // 2 bytes
	RegImagData    byte = 0x96 // 2 bytes
)

// Status register bits.
const (
	StatusTempValid byte = 1 << 0
	StatusDataValid byte = 1 << 1
	StatusSweepDone byte = 1 << 2
)

// Control LB bits.
const (
	controlReset  byte = 1 << 4
	controlExtClk byte = 1 << 3
)

// Device limits.
const (
	InternalClock     = 16_000_000 // Hz
	MaxIncrements     = 511
	MaxSettlingCycles = 511     // 9-bit count field
	MaxSettlingTime   = 2044    // count × 4
	MaxFrequency      = 100_000 // Hz, specified output range
	maxFrequencyCode  = 1<<24 - 1
)
