//go:build !gocv

package recorder

import "errors"

// VideoWriterSink is unavailable in builds without the gocv tag
type VideoWriterSink struct{}

// NewVideoWriterSink fails without OpenCV support. Use the mjpeg format or
// rebuild with -tags gocv.
func NewVideoWriterSink(format string) (*VideoWriterSink, error) {
	return nil, errors.New("video writer requires OpenCV (rebuild with -tags gocv)")
}

func (s *VideoWriterSink) Ext() string { return "" }

func (s *VideoWriterSink) Open(path string, width, height int, fps float64) (Handle, error) {
	return nil, errors.New("video writer requires OpenCV")
}
