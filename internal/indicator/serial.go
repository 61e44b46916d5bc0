package indicator

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// DefaultBaudRate matches the strip controller firmware
const DefaultBaudRate = 115200

// SerialPorter is the minimal interface needed for a serial port
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialStrip is an addressable strip driven by a microcontroller. Commands
// are newline-terminated: "COLOR r g b" fills the strip, "OFF" blanks it.
type SerialStrip struct {
	mu     sync.Mutex
	port   SerialPorter
	closed bool
}

// OpenSerialStrip opens the serial device at path
func OpenSerialStrip(path string, baud int) (*SerialStrip, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return NewSerialStrip(port), nil
}

// NewSerialStrip wraps an open port
func NewSerialStrip(port SerialPorter) *SerialStrip {
	return &SerialStrip{port: port}
}

// Command returns the wire command for a colour
func Command(c Color) string {
	if c == Black {
		return "OFF\n"
	}
	return fmt.Sprintf("COLOR %d %d %d\n", c.R, c.G, c.B)
}

// SetColor sends the colour to the controller
func (s *SerialStrip) SetColor(c Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("serial strip closed")
	}
	if _, err := io.WriteString(s.port, Command(c)); err != nil {
		return fmt.Errorf("failed to write serial command: %w", err)
	}
	return nil
}

// SetState implements Indicator
func (s *SerialStrip) SetState(state types.IndicatorState) error {
	return s.SetColor(ColorFor(state))
}

// Close blanks the strip and closes the port
func (s *SerialStrip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	_, err := io.WriteString(s.port, Command(Black))
	if cerr := s.port.Close(); err == nil {
		err = cerr
	}
	return err
}
