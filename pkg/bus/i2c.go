package bus

import (
	"fmt"

	"tinygo.org/x/drivers"
)

const (
	// DefaultAddress is the 7-bit I2C address of the AD5933.
	DefaultAddress uint16 = 0x0D

	// CmdBlockWrite writes a counted run of bytes starting at the address pointer.
	CmdBlockWrite byte = 0xA0
	// CmdBlockRead reads a counted run of bytes starting at the address pointer.
	CmdBlockRead byte = 0xA1
	// CmdAddrPointer sets the register address pointer.
	CmdAddrPointer byte = 0xB0
)

// I2C talks to the device through any controller implementing drivers.I2C,
// e.g. machine.I2C0 under TinyGo or the simulator in package ad5933.
type I2C struct {
	conn    drivers.I2C
	address uint16
	block   bool
}

// NewI2C wraps conn. When block is set, multi-byte accesses use the block
// write/read commands instead of one transaction per byte.
func NewI2C(conn drivers.I2C, address uint16, block bool) *I2C {
	if address == 0 {
		address = DefaultAddress
	}
	return &I2C{
		conn:    conn,
		address: address,
		block:   block,
	}
}

// Address returns the device address used for transactions.
func (b *I2C) Address() uint16 {
	return b.address
}

// WriteRegister writes n bytes of value to reg, reg+1, ...
func (b *I2C) WriteRegister(reg byte, value uint32, n int) error {
	if err := checkWidth(n); err != nil {
		return err
	}
	data := encode(value, n)

	if b.block && n > 1 {
		if err := b.setPointer(reg); err != nil {
			return err
		}
		w := append([]byte{CmdBlockWrite, byte(n)}, data...)
		if err := b.conn.Tx(b.address, w, nil); err != nil {
			return fmt.Errorf("block write 0x%02X: %w", reg, err)
		}
		return nil
	}

	for i, v := range data {
		if err := b.conn.Tx(b.address, []byte{reg + byte(i), v}, nil); err != nil {
			return fmt.Errorf("write 0x%02X: %w", reg+byte(i), err)
		}
	}
	return nil
}

// ReadRegister reads n bytes from reg, reg+1, ... and returns them big-endian.
func (b *I2C) ReadRegister(reg byte, n int) (uint32, error) {
	if err := checkWidth(n); err != nil {
		return 0, err
	}
	buf := make([]byte, n)

	if b.block && n > 1 {
		if err := b.setPointer(reg); err != nil {
			return 0, err
		}
		if err := b.conn.Tx(b.address, []byte{CmdBlockRead, byte(n)}, buf); err != nil {
			return 0, fmt.Errorf("block read 0x%02X: %w", reg, err)
		}
		return decode(buf), nil
	}

	for i := range buf {
		if err := b.setPointer(reg + byte(i)); err != nil {
			return 0, err
		}
		if err := b.conn.Tx(b.address, nil, buf[i:i+1]); err != nil {
			return 0, fmt.Errorf("read 0x%02X: %w", reg+byte(i), err)
		}
	}
	return decode(buf), nil
}

func (b *I2C) setPointer(reg byte) error {
	if err := b.conn.Tx(b.address, []byte{CmdAddrPointer, reg}, nil); err != nil {
		return fmt.Errorf("set address pointer 0x%02X: %w", reg, err)
	}
	return nil
}
