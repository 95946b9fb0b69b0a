package ad5933

import "fmt"

// Function is the device's control function, held in bits 7..4 of control HB.
type Function uint8

const (
	FunctionNOP           Function = 0x0
	FunctionInitStartFreq Function = 0x1
	FunctionStartSweep    Function = 0x2
	FunctionIncFreq       Function = 0x3
	FunctionRepeatFreq    Function = 0x4
	FunctionMeasureTemp   Function = 0x9
	FunctionPowerDown     Function = 0xA
	FunctionStandby       Function = 0xB
)

func (f Function) String() string {
	switch f {
	case FunctionNOP:
		return "nop"
	case FunctionInitStartFreq:
		return "init-start-frequency"
	case FunctionStartSweep:
		return "start-sweep"
	case FunctionIncFreq:
		return "increment-frequency"
	case FunctionRepeatFreq:
		return "repeat-frequency"
	case FunctionMeasureTemp:
		return "measure-temperature"
	case FunctionPowerDown:
		return "power-down"
	case FunctionStandby:
		return "standby"
	default:
		return fmt.Sprintf("function(0x%X)", uint8(f))
	}
}

// Valid reports whether f is a documented function code.
func (f Function) Valid() bool {
	switch f {
	case FunctionNOP, FunctionInitStartFreq, FunctionStartSweep, FunctionIncFreq,
		FunctionRepeatFreq, FunctionMeasureTemp, FunctionPowerDown, FunctionStandby:
		return true
	}
	return false
}

// Range selects the excitation output voltage, bits 2..1 of control HB.
type Range uint8

const (
	Range2000mVpp Range = 0x0
	Range200mVpp  Range = 0x1
	Range400mVpp  Range = 0x2
	Range1000mVpp Range = 0x3
)

// Millivolts returns the peak-to-peak excitation voltage.
func (r Range) Millivolts() int {
	switch r {
	case Range2000mVpp:
		return 2000
	case Range200mVpp:
		return 200
	case Range400mVpp:
		return 400
	case Range1000mVpp:
		return 1000
	}
	return 0
}

// RangeFromMillivolts maps a peak-to-peak voltage to its range code.
func RangeFromMillivolts(mv int) (Range, error) {
	for _, r := range []Range{Range2000mVpp, Range200mVpp, Range400mVpp, Range1000mVpp} {
		if r.Millivolts() == mv {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: output range %d mVpp", ErrInvalidRange, mv)
}

// Gain is the receive PGA gain, bit 0 of control HB.
type Gain uint8

const (
	GainX5 Gain = 0
	GainX1 Gain = 1
)

// GainFromFactor maps 1 or 5 to its gain code.
func GainFromFactor(x int) (Gain, error) {
	switch x {
	case 1:
		return GainX1, nil
	case 5:
		return GainX5, nil
	}
	return 0, fmt.Errorf("%w: PGA gain x%d", ErrInvalidRange, x)
}

// ClockSource selects the system clock, bit 3 of control LB.
type ClockSource uint8

const (
	ClockInternal ClockSource = 0
	ClockExternal ClockSource = 1
)

// Control is the decoded control HB register.
//
//	bit  7..4  function
//	bit  3     reserved
//	bit  2..1  output range
//	bit  0     PGA gain
type Control struct {
	Function Function
	Range    Range
	Gain     Gain
}

// EncodeControl packs c into the control HB byte.
func EncodeControl(c Control) byte {
	return byte(c.Function&0xF)<<4 | byte(c.Range&0x3)<<1 | byte(c.Gain&0x1)
}

// DecodeControl unpacks a control HB byte.
func DecodeControl(b byte) Control {
	return Control{
		Function: Function(b >> 4),
		Range:    Range(b >> 1 & 0x3),
		Gain:     Gain(b & 0x1),
	}
}

// EncodeControlLB packs the control LB byte.
//
//	bit 4  reset
//	bit 3  external system clock
func EncodeControlLB(reset bool, clk ClockSource) byte {
	var b byte
	if reset {
		b |= controlReset
	}
	if clk == ClockExternal {
		b |= controlExtClk
	}
	return b
}
