//go:build tinygo

package main

import "machine"

const (
	// I2C configuration
	I2C_FREQUENCY   = 400 * machine.KHz // AD5933 supports fast mode
	BLOCK_TRANSFERS = true              // use block read/write for multi-byte registers

	// I2C pins
	PIN_SDA = machine.SDA_PIN
	PIN_SCL = machine.SCL_PIN

	// Activity indicator, on while a request is executed
	PIN_LED = machine.LED

	// Serial configuration
	// Longest request: "W 82 FFFFFF 3" = 13 bytes, replies are shorter except errors.
	UART_BAUD_RATE = 115200
	LINE_BUFFER    = 32
)
