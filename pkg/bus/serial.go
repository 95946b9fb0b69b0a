//go:build !tinygo

package bus

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
)

var _ Bus = (*Serial)(nil)

const (
	// DefaultBaudRate matches the bridge firmware UART configuration.
	DefaultBaudRate = 115200
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial reaches the device through the bridge firmware running on the MCU
// the AD5933 is wired to. Each register access is one request line answered
// by one reply line:
//
//	W <reg> <value> <n>   ->  OK
//	R <reg> <n>           ->  <value>
//
// Register and value are hexadecimal. Failures are answered with "ERR <msg>".
// Serial is safe for concurrent use; requests are serialized.
type Serial struct {
	port     string
	baudRate int

	mu        sync.Mutex
	conn      io.ReadWriteCloser
	reader    *bufio.Reader
	connected bool
}

// NewSerial creates a bridge connection for the given port. A zero baud rate
// selects DefaultBaudRate.
func NewSerial(port string, baudRate int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return &Serial{
		port:     port,
		baudRate: baudRate,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}
	return result, nil
}

// Connect opens the serial port.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	port, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}
	s.attach(port)
	return nil
}

// attach binds an already open stream. Caller holds mu.
func (s *Serial) attach(conn io.ReadWriteCloser) {
	s.conn = conn
	s.reader = bufio.NewReader(conn)
	s.connected = true
}

// Close closes the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}
	s.connected = false
	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", s.port, err)
	}
	return nil
}

// IsConnected returns whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// WriteRegister writes n bytes of value starting at reg.
func (s *Serial) WriteRegister(reg byte, value uint32, n int) error {
	if err := checkWidth(n); err != nil {
		return err
	}
	_, err := s.request(formatWrite(reg, value, n), false)
	if err != nil {
		return fmt.Errorf("write 0x%02X: %w", reg, err)
	}
	return nil
}

// ReadRegister reads n bytes starting at reg.
func (s *Serial) ReadRegister(reg byte, n int) (uint32, error) {
	if err := checkWidth(n); err != nil {
		return 0, err
	}
	v, err := s.request(formatRead(reg, n), true)
	if err != nil {
		return 0, fmt.Errorf("read 0x%02X: %w", reg, err)
	}
	if n < MaxWidth && v>>(8*uint(n)) != 0 {
		return 0, fmt.Errorf("read 0x%02X: value 0x%X wider than %d bytes", reg, v, n)
	}
	return v, nil
}

func (s *Serial) request(cmd string, wantValue bool) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return 0, fmt.Errorf("not connected")
	}
	if _, err := io.WriteString(s.conn, cmd); err != nil {
		return 0, fmt.Errorf("failed to send command: %w", err)
	}
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("failed to read reply: %w", err)
	}
	return parseReply(strings.TrimSpace(line), wantValue)
}
