//go:build !gocv

package detect

import (
	"context"
	"errors"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

var errNoOpenCV = errors.New("dnn detector requires OpenCV (rebuild with -tags gocv)")

// DNNDetector is unavailable in builds without the gocv tag
type DNNDetector struct{}

// NewDNNDetector always fails without OpenCV support
func NewDNNDetector(path string, confidence float64) (*DNNDetector, error) {
	return nil, errNoOpenCV
}

func (d *DNNDetector) Detect(ctx context.Context, frame *types.Frame) ([]types.Detection, error) {
	return nil, errNoOpenCV
}

func (d *DNNDetector) Close() error { return nil }
