// Package display renders per-frame status for an operator.
package display

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// ANSI sequences used by the terminal sink
const (
	colorGreen = "\033[92m"
	colorRed   = "\033[91m"
	colorReset = "\033[0m"
	clearLine  = "\033[F\033[K"
)

// Sink shows the latest annotated frame and people count
type Sink interface {
	Show(frame *types.Frame, count, minPeople int) error
	Close() error
}

// None discards everything.
type None struct{}

func (None) Show(*types.Frame, int, int) error { return nil }
func (None) Close() error                      { return nil }

// Terminal rewrites a single coloured status line.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal writes status lines to w (usually os.Stdout)
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// StatusLine returns the coloured line shown for count against minPeople
func StatusLine(count, minPeople int) string {
	if count >= minPeople {
		return fmt.Sprintf("%s✓ %d people detected (Meeting minimum requirement of %d)%s",
			colorGreen, count, minPeople, colorReset)
	}
	return fmt.Sprintf("%s⚠ Only %d person(s) detected (Below minimum requirement of %d)%s",
		colorRed, count, minPeople, colorReset)
}

// Show implements Sink. If the coloured line cannot be written a plain
// fallback is attempted before the error is returned.
func (t *Terminal) Show(_ *types.Frame, count, minPeople int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := fmt.Fprintf(t.w, "%s%s\n", clearLine, StatusLine(count, minPeople)); err != nil {
		_, _ = fmt.Fprintf(t.w, "People detected: %d\n", count)
		return fmt.Errorf("terminal write failed: %w", err)
	}
	return nil
}

// Close implements Sink
func (t *Terminal) Close() error { return nil }

// Multi shows every frame on several sinks. All sinks are tried even if
// one of them fails.
type Multi []Sink

func (m Multi) Show(frame *types.Frame, count, minPeople int) error {
	var errs []error
	for _, s := range m {
		if err := s.Show(frame, count, minPeople); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
