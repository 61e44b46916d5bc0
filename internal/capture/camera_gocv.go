//go:build gocv

package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/dj-oyu/people-count-monitor/internal/logger"
	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// csiPipeline opens a CSI camera module through GStreamer
const csiPipeline = "nvarguscamerasrc ! " +
	"video/x-raw(memory:NVMM), width=1280, height=720, format=(string)NV12, framerate=30/1 ! " +
	"nvvidconv ! video/x-raw, format=(string)BGRx ! " +
	"videoconvert ! video/x-raw, format=(string)BGR ! appsink"

const usbProbeCount = 10

// Camera is an OpenCV capture device
type Camera struct {
	name string

	mu     sync.Mutex
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	seq    uint64
	closed bool
}

// OpenCamera opens the given device index, or runs discovery when device
// is negative: CSI via GStreamer, then device 0 at 1280x720@30, then USB
// indices 0..9. A candidate is accepted only if it yields a first frame.
func OpenCamera(device int) (*Camera, error) {
	if device >= 0 {
		vc, err := gocv.OpenVideoCapture(device)
		if err != nil {
			return nil, fmt.Errorf("%w: open device %d: %v", ErrNoFrame, device, err)
		}
		if !probe(vc) {
			vc.Close()
			return nil, fmt.Errorf("%w: device %d yields no frames", ErrNoFrame, device)
		}
		return newCamera(vc, fmt.Sprintf("device %d", device)), nil
	}

	if vc, err := gocv.OpenVideoCaptureWithAPI(csiPipeline, gocv.VideoCaptureGstreamer); err == nil {
		if probe(vc) {
			logger.Info("Capture", "Using CSI camera")
			return newCamera(vc, "csi"), nil
		}
		vc.Close()
	} else {
		logger.Warn("Capture", "CSI camera not available: %v", err)
	}

	if vc, err := gocv.OpenVideoCapture(0); err == nil {
		vc.Set(gocv.VideoCaptureFrameWidth, 1280)
		vc.Set(gocv.VideoCaptureFrameHeight, 720)
		vc.Set(gocv.VideoCaptureFPS, 30)
		if probe(vc) {
			logger.Info("Capture", "Using legacy CSI camera")
			return newCamera(vc, "legacy-csi"), nil
		}
		vc.Close()
	}

	for i := 0; i < usbProbeCount; i++ {
		vc, err := gocv.OpenVideoCapture(i)
		if err != nil {
			logger.Debug("Capture", "Camera index %d unavailable: %v", i, err)
			continue
		}
		if probe(vc) {
			logger.Info("Capture", "Using USB camera at index %d", i)
			return newCamera(vc, fmt.Sprintf("usb %d", i)), nil
		}
		vc.Close()
	}

	logger.Error("Capture", "No cameras found")
	return nil, fmt.Errorf("%w: no cameras found", ErrNoFrame)
}

func probe(vc *gocv.VideoCapture) bool {
	if !vc.IsOpened() {
		return false
	}
	m := gocv.NewMat()
	defer m.Close()
	return vc.Read(&m) && !m.Empty()
}

func newCamera(vc *gocv.VideoCapture, name string) *Camera {
	return &Camera{name: name, cap: vc, mat: gocv.NewMat()}
}

// Name describes which discovery step produced the camera
func (c *Camera) Name() string { return c.name }

// Next reads one frame from the device
func (c *Camera) Next(ctx context.Context) (*types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrNoFrame
	}
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, fmt.Errorf("%w: failed to grab frame", ErrNoFrame)
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: convert frame: %v", ErrNoFrame, err)
	}

	c.seq++
	return types.NewFrame(img, c.seq, time.Now()), nil
}

// Close releases the capture device
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.mat.Close()
	return c.cap.Close()
}
