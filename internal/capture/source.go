// Package capture provides camera frame sources for the monitor.
package capture

import (
	"context"
	"errors"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// ErrNoFrame is returned when a source can no longer produce frames.
// The monitor treats it as fatal.
var ErrNoFrame = errors.New("no frame available")

// Source yields camera frames in order
type Source interface {
	// Next blocks until a frame is available or the source fails.
	Next(ctx context.Context) (*types.Frame, error)
	Close() error
}
