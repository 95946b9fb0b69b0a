package ad5933

import "math"

// RawSample is one real/imaginary DFT result read from the device.
type RawSample struct {
	Real int16
	Imag int16
}

// Magnitude returns sqrt(real² + imag²).
func (r RawSample) Magnitude() float64 {
	return math.Hypot(float64(r.Real), float64(r.Imag))
}

// Phase returns atan2(imag, real) in radians.
func (r RawSample) Phase() float64 {
	return math.Atan2(float64(r.Imag), float64(r.Real))
}

// Point is a raw sample taken at one step of a sweep.
type Point struct {
	Index     int
	Frequency int // Hz
	Raw       RawSample
}

// decodeTemperature converts the 14-bit two's complement temperature
// register to degrees Celsius.
func decodeTemperature(v uint32) float64 {
	raw := int(v & 0x3FFF)
	if raw&0x2000 != 0 {
		raw -= 0x4000
	}
	return float64(raw) / 32
}
