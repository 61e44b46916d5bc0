//go:build !gocv

package capture

import (
	"context"
	"fmt"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// Camera is unavailable in builds without the gocv tag
type Camera struct{}

// OpenCamera always fails without OpenCV support. Use an MJPEG source or
// rebuild with -tags gocv.
func OpenCamera(device int) (*Camera, error) {
	return nil, fmt.Errorf("%w: built without OpenCV support (rebuild with -tags gocv)", ErrNoFrame)
}

func (c *Camera) Name() string { return "" }

func (c *Camera) Next(ctx context.Context) (*types.Frame, error) { return nil, ErrNoFrame }

func (c *Camera) Close() error { return nil }
