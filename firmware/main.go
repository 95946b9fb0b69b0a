//go:build tinygo

//go:generate tinygo flash -target=xiao

// Command firmware bridges the host serial link to the AD5933 on the MCU's
// I2C bus. Every request line is executed as a register access and answered
// with one reply line (see bus.Handle).
package main

import (
	"machine"
	"time"

	"github.com/itohio/goimp/pkg/bus"
)

var (
	i2c    = machine.I2C0
	uart   = machine.Serial
	device *bus.I2C

	// Serial buffer for reading lines
	lineBuffer [LINE_BUFFER]byte
	linePos    int
	overflow   bool // current line exceeded the buffer and is discarded
)

func main() {
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_LED.Low()

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	err := i2c.Configure(machine.I2CConfig{
		Frequency: I2C_FREQUENCY,
		SDA:       PIN_SDA,
		SCL:       PIN_SCL,
	})
	if err != nil {
		// Without I2C every request fails; keep answering so the host sees why.
		println("ERR i2c:", err.Error())
	}
	device = bus.NewI2C(i2c, bus.DefaultAddress, BLOCK_TRANSFERS)

	for {
		processSerial()
		time.Sleep(100 * time.Microsecond)
	}
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			switch {
			case overflow:
				uart.Write([]byte("ERR line too long\n"))
			case linePos > 0:
				handleLine(string(lineBuffer[:linePos]))
			}
			linePos = 0
			overflow = false
			continue
		}

		if linePos < len(lineBuffer) {
			lineBuffer[linePos] = data
			linePos++
		} else {
			overflow = true
		}
	}
}

func handleLine(line string) {
	PIN_LED.High()
	uart.Write([]byte(bus.Handle(device, line)))
	PIN_LED.Low()
}
