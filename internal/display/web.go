package display

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// DefaultJPEGQuality is used for frames pushed to browsers
const DefaultJPEGQuality = 75

// Publisher fans encoded JPEG frames out to stream clients
type Publisher interface {
	Publish(jpegData []byte)
	ClientCount() int
}

// Web encodes frames for the MJPEG endpoint. Encoding is skipped while
// nobody is watching.
type Web struct {
	pub     Publisher
	quality int
}

// NewWeb creates a web sink. quality <= 0 selects DefaultJPEGQuality.
func NewWeb(pub Publisher, quality int) *Web {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	return &Web{pub: pub, quality: quality}
}

func (w *Web) Show(frame *types.Frame, _, _ int) error {
	if frame == nil || frame.Image == nil || w.pub.ClientCount() == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: w.quality}); err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", frame.Seq, err)
	}
	w.pub.Publish(buf.Bytes())
	return nil
}

func (w *Web) Close() error { return nil }
