package indicator

import (
	"context"
	"time"

	"github.com/dj-oyu/people-count-monitor/internal/timeutil"
)

// DefaultCycle is the test sequence shown on strips
var DefaultCycle = []Color{Red, Green, Blue, White, Black}

// Blink toggles a single LED on for on and off for off until ctx is
// cancelled. The LED is left off. step, if set, is called after each change.
func Blink(ctx context.Context, led Switch, on, off time.Duration, clock timeutil.Clock, step func(on bool)) error {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	defer led.Set(false)

	for {
		for _, phase := range []struct {
			on   bool
			hold time.Duration
		}{{true, on}, {false, off}} {
			if err := led.Set(phase.on); err != nil {
				return err
			}
			if step != nil {
				step(phase.on)
			}
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-clock.After(phase.hold):
			}
		}
	}
}

// CycleColors shows each colour for hold in turn, repeating until ctx is
// cancelled. The strip is left blank. It works for any ColorSetter, so the
// local and serial strips run the same sequence.
func CycleColors(ctx context.Context, strip ColorSetter, colors []Color, hold time.Duration, clock timeutil.Clock, step func(Color)) error {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if len(colors) == 0 {
		colors = DefaultCycle
	}
	defer strip.SetColor(Black)

	for {
		for _, c := range colors {
			if err := strip.SetColor(c); err != nil {
				return err
			}
			if step != nil {
				step(c)
			}
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-clock.After(hold):
			}
		}
	}
}
