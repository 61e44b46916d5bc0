//go:build gocv

package display

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// Window shows annotated frames in a desktop window
type Window struct {
	mu     sync.Mutex
	win    *gocv.Window
	closed bool
}

// OpenWindow creates a named window
func OpenWindow(title string) (*Window, error) {
	return &Window{win: gocv.NewWindow(title)}, nil
}

func (w *Window) Show(frame *types.Frame, _, _ int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || frame == nil || frame.Image == nil {
		return nil
	}
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return fmt.Errorf("failed to convert frame %d: %w", frame.Seq, err)
	}
	defer mat.Close()

	w.win.IMShow(mat)
	w.win.WaitKey(1)
	return nil
}

func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.win.Close()
}
