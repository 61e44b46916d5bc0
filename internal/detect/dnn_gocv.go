//go:build gocv

package detect

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

const (
	yoloInputSize  = 640
	yoloNMSOverlap = 0.45
)

// DNNDetector runs a YOLOv8 ONNX model through OpenCV's DNN module
type DNNDetector struct {
	mu         sync.Mutex
	net        gocv.Net
	confidence float64
}

// NewDNNDetector loads the ONNX model at path
func NewDNNDetector(path string, confidence float64) (*DNNDetector, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &DNNDetector{net: net, confidence: confidence}, nil
}

// Detect runs one forward pass. The output tensor is [1, 4+classes, anchors]
// with boxes as centre x, centre y, width, height in input pixels.
func (d *DNNDetector) Detect(ctx context.Context, frame *types.Frame) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(yoloInputSize, yoloInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	rows, anchors := dims[1], dims[2]

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	sx := float64(frame.Width) / yoloInputSize
	sy := float64(frame.Height) / yoloInputSize

	var dets []types.Detection
	for i := 0; i < anchors; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 4; c < rows; c++ {
			if s := data[c*anchors+i]; s > bestScore {
				bestClass, bestScore = c-4, s
			}
		}
		if bestClass != types.ClassPersonID || float64(bestScore) < d.confidence {
			continue
		}

		cx := float64(data[0*anchors+i])
		cy := float64(data[1*anchors+i])
		w := float64(data[2*anchors+i])
		h := float64(data[3*anchors+i])

		dets = append(dets, types.Detection{
			ClassID:    bestClass,
			ClassName:  types.ClassPersonName,
			Confidence: float64(bestScore),
			BBox: types.BoundingBox{
				X1: int((cx - w/2) * sx),
				Y1: int((cy - h/2) * sy),
				X2: int((cx + w/2) * sx),
				Y2: int((cy + h/2) * sy),
			},
		})
	}

	return NMS(dets, yoloNMSOverlap), nil
}

// Close releases the network
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
