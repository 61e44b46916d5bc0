package recorder

import (
	"bufio"
	"fmt"
	"image/jpeg"
	"os"
	"sync"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// Sink opens recording files
type Sink interface {
	Open(path string, width, height int, fps float64) (Handle, error)
	// Ext is the file extension the sink writes, without a dot
	Ext() string
}

// Handle is one open recording
type Handle interface {
	Write(frame *types.Frame) error
	Close() error
}

// byteCounter is implemented by handles that know their on-disk size
type byteCounter interface {
	BytesWritten() uint64
}

// MJPEGSink writes recordings as concatenated JPEG frames, playable by
// ffplay and VLC. It needs no native codecs.
type MJPEGSink struct {
	Quality int
}

// NewMJPEGSink creates a sink with the given JPEG quality (1-100)
func NewMJPEGSink(quality int) *MJPEGSink {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &MJPEGSink{Quality: quality}
}

// Ext implements Sink
func (s *MJPEGSink) Ext() string { return "mjpeg" }

// Open creates the file at path
func (s *MJPEGSink) Open(path string, width, height int, fps float64) (Handle, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &mjpegHandle{
		file:    f,
		w:       bufio.NewWriter(f),
		quality: s.Quality,
	}, nil
}

type mjpegHandle struct {
	mu      sync.Mutex
	file    *os.File
	w       *bufio.Writer
	quality int
	bytes   uint64
	frames  uint64
	closed  bool
}

type countingWriter struct {
	w *bufio.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

func (h *mjpegHandle) Write(frame *types.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("recording closed")
	}

	cw := &countingWriter{w: h.w}
	if err := jpeg.Encode(cw, frame.Image, &jpeg.Options{Quality: h.quality}); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	h.bytes += cw.n
	h.frames++
	return nil
}

func (h *mjpegHandle) BytesWritten() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bytes
}

func (h *mjpegHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if err := h.w.Flush(); err != nil {
		h.file.Close()
		return fmt.Errorf("failed to flush file: %w", err)
	}
	if err := h.file.Sync(); err != nil {
		h.file.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := h.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
