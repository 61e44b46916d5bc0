package indicator

import (
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// pixelWriter is the part of nrzled.Dev the strip needs
type pixelWriter interface {
	Write(pixels []byte) (int, error)
	Halt() error
}

// Strip is a WS2812 strip driven locally over SPI
type Strip struct {
	mu     sync.Mutex
	dev    pixelWriter
	port   io.Closer
	pixels int
	buf    []byte
	closed bool
}

// OpenStrip opens the SPI port (empty for the first available) and
// attaches a strip of the given length
func OpenStrip(portName string, pixels int) (*Strip, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise SPI host: %w", err)
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", portName, err)
	}

	opts := nrzled.DefaultOpts
	opts.NumPixels = pixels
	opts.Channels = 3
	dev, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to attach strip: %w", err)
	}
	return NewStrip(dev, port, pixels), nil
}

// NewStrip wraps an already attached device. port may be nil.
func NewStrip(dev pixelWriter, port io.Closer, pixels int) *Strip {
	return &Strip{
		dev:    dev,
		port:   port,
		pixels: pixels,
		buf:    make([]byte, pixels*3),
	}
}

// SetColor fills every pixel with c
func (s *Strip) SetColor(c Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("strip closed")
	}
	for i := 0; i < s.pixels; i++ {
		s.buf[i*3] = c.R
		s.buf[i*3+1] = c.G
		s.buf[i*3+2] = c.B
	}
	if _, err := s.dev.Write(s.buf); err != nil {
		return fmt.Errorf("failed to write strip: %w", err)
	}
	return nil
}

// SetState implements Indicator
func (s *Strip) SetState(state types.IndicatorState) error {
	return s.SetColor(ColorFor(state))
}

// Close blanks the strip and releases the port
func (s *Strip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	clear(s.buf)
	_, err := s.dev.Write(s.buf)
	if herr := s.dev.Halt(); err == nil {
		err = herr
	}
	if s.port != nil {
		if cerr := s.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
