package indicator

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// DefaultPin is BCM GPIO18 (header pin 12)
const DefaultPin = "GPIO18"

// outputPin is the part of gpio.PinIO the LED needs
type outputPin interface {
	Out(l gpio.Level) error
}

// GPIOLED is a single LED on a GPIO output. OK and ALERT drive the pin
// high, OFF drives it low.
type GPIOLED struct {
	mu     sync.Mutex
	name   string
	pin    outputPin
	closed bool
}

// OpenGPIOLED initialises the host drivers and claims the named pin
func OpenGPIOLED(name string) (*GPIOLED, error) {
	if name == "" {
		name = DefaultPin
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise GPIO host: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown GPIO pin %q", name)
	}
	return NewGPIOLED(name, p)
}

// NewGPIOLED wraps an output pin and drives it low
func NewGPIOLED(name string, pin outputPin) (*GPIOLED, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to set %s as output: %w", name, err)
	}
	return &GPIOLED{name: name, pin: pin}, nil
}

// TriState implements TriStater
func (l *GPIOLED) TriState() bool { return true }

// Set drives the LED on or off
func (l *GPIOLED) Set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("led %s closed", l.name)
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := l.pin.Out(level); err != nil {
		return fmt.Errorf("failed to drive %s: %w", l.name, err)
	}
	return nil
}

// SetState implements Indicator
func (l *GPIOLED) SetState(state types.IndicatorState) error {
	return l.Set(state != types.IndicatorOff)
}

// Close turns the LED off
func (l *GPIOLED) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.pin.Out(gpio.Low)
}
