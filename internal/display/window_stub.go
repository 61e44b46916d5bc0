//go:build !gocv

package display

import (
	"errors"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// ErrNoWindow is returned when the binary was built without OpenCV
var ErrNoWindow = errors.New("window display requires the gocv build tag")

// Window is unavailable without OpenCV
type Window struct{}

func OpenWindow(string) (*Window, error) { return nil, ErrNoWindow }

func (*Window) Show(*types.Frame, int, int) error { return ErrNoWindow }
func (*Window) Close() error                      { return nil }
