// Package indicator drives the status LED hardware: a single GPIO LED,
// an addressable strip on SPI, or a strip behind a microcontroller on a
// serial link.
package indicator

import (
	"fmt"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// Indicator shows the monitor state
type Indicator interface {
	SetState(state types.IndicatorState) error
	Close() error
}

// TriStater is implemented by indicators that show a distinct OFF state
// for exactly one person.
type TriStater interface {
	TriState() bool
}

// Switch is a single on/off LED
type Switch interface {
	Set(on bool) error
}

// ColorSetter fills a whole strip with one colour
type ColorSetter interface {
	SetColor(c Color) error
}

// IsTriState reports whether ind distinguishes the one-person OFF state
func IsTriState(ind Indicator) bool {
	ts, ok := ind.(TriStater)
	return ok && ts.TriState()
}

// StateFor maps a head count to an indicator state. A count at or above
// min is OK; below it is ALERT, except that exactly one person shows OFF
// on tri-state hardware.
func StateFor(count, min int, triState bool) types.IndicatorState {
	if count >= min {
		return types.IndicatorOK
	}
	if triState && count == 1 {
		return types.IndicatorOff
	}
	return types.IndicatorAlert
}

// Color is an RGB value
type Color struct {
	R, G, B uint8
}

func (c Color) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Named colours
var (
	Red   = Color{R: 255}
	Green = Color{G: 255}
	Blue  = Color{B: 255}
	White = Color{R: 255, G: 255, B: 255}
	Black = Color{}
)

// ColorFor returns the strip colour for a state
func ColorFor(state types.IndicatorState) Color {
	switch state {
	case types.IndicatorOK:
		return Green
	case types.IndicatorAlert:
		return Red
	default:
		return Black
	}
}

// None discards state changes
type None struct{}

func (None) SetState(types.IndicatorState) error { return nil }
func (None) Close() error                        { return nil }
