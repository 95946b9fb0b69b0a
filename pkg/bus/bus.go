// Package bus provides raw register access to an AD5933 over the transports
// the host can reach: a direct I2C controller or a serial bridge MCU.
//
// All multi-byte register values are big-endian and occupy consecutive
// register addresses starting at the given one.
package bus

import "fmt"

// MaxWidth is the widest register value a single transaction may carry.
const MaxWidth = 4

// Bus reads and writes device registers. Implementations are synchronous and
// are not safe for concurrent use unless stated otherwise.
type Bus interface {
	WriteRegister(reg byte, value uint32, n int) error
	ReadRegister(reg byte, n int) (uint32, error)
}

var _ Bus = (*I2C)(nil)

func checkWidth(n int) error {
	if n < 1 || n > MaxWidth {
		return fmt.Errorf("invalid register width %d (1..%d)", n, MaxWidth)
	}
	return nil
}

// encode splits value into n big-endian bytes.
func encode(value uint32, n int) []byte {
	buf := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		buf[i] = byte(value)
		value >>= 8
	}
	return buf
}

// decode assembles big-endian bytes into a value.
func decode(buf []byte) uint32 {
	var v uint32
	for _, b := range buf {
		v = v<<8 | uint32(b)
	}
	return v
}
