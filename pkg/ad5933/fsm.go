package ad5933

import "fmt"

// transitions lists the functions that may follow each function. Anything
// else is rejected before it reaches the bus.
var transitions = map[Function][]Function{
	FunctionNOP:           {FunctionStandby, FunctionPowerDown, FunctionInitStartFreq, FunctionMeasureTemp},
	FunctionStandby:       {FunctionStandby, FunctionPowerDown, FunctionInitStartFreq, FunctionMeasureTemp},
	FunctionPowerDown:     {FunctionStandby, FunctionPowerDown},
	FunctionMeasureTemp:   {FunctionStandby, FunctionPowerDown, FunctionInitStartFreq, FunctionMeasureTemp},
	FunctionInitStartFreq: {FunctionStartSweep, FunctionStandby, FunctionPowerDown},
	FunctionStartSweep:    {FunctionIncFreq, FunctionRepeatFreq, FunctionStandby, FunctionPowerDown},
	FunctionIncFreq:       {FunctionIncFreq, FunctionRepeatFreq, FunctionStandby, FunctionPowerDown},
	FunctionRepeatFreq:    {FunctionIncFreq, FunctionRepeatFreq, FunctionStandby, FunctionPowerDown},
}

// CanTransition reports whether the device may go from function from to to.
func CanTransition(from, to Function) bool {
	for _, f := range transitions[from] {
		if f == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to Function) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s after %s", ErrInvalidState, to, from)
	}
	return nil
}
