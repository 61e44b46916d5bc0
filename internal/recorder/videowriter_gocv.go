//go:build gocv

package recorder

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// VideoWriterSink encodes recordings with OpenCV's VideoWriter
type VideoWriterSink struct {
	codec string
	ext   string
}

// NewVideoWriterSink returns an XVID/.avi sink, or mp4v/.mp4 when format is "mp4"
func NewVideoWriterSink(format string) (*VideoWriterSink, error) {
	if format == "mp4" {
		return &VideoWriterSink{codec: "mp4v", ext: "mp4"}, nil
	}
	return &VideoWriterSink{codec: "XVID", ext: "avi"}, nil
}

// Ext implements Sink
func (s *VideoWriterSink) Ext() string { return s.ext }

// Open implements Sink
func (s *VideoWriterSink) Open(path string, width, height int, fps float64) (Handle, error) {
	vw, err := gocv.VideoWriterFile(path, s.codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open video writer: %w", err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("video writer for %s did not open", path)
	}
	return &videoHandle{vw: vw}, nil
}

type videoHandle struct {
	mu     sync.Mutex
	vw     *gocv.VideoWriter
	closed bool
}

func (h *videoHandle) Write(frame *types.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("recording closed")
	}

	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	return h.vw.Write(mat)
}

func (h *videoHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.vw.Close()
}
