package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

const jpegQuality = 85

// HTTPDetector posts JPEG frames to an inference service
type HTTPDetector struct {
	url        string
	client     *http.Client
	confidence float64
}

// detectResponse is the JSON body returned by the inference service
type detectResponse struct {
	Detections []struct {
		ClassID    int        `json:"class_id"`
		ClassName  string     `json:"class_name"`
		Confidence float64    `json:"confidence"`
		BBox       [4]float64 `json:"bbox"` // x1, y1, x2, y2
	} `json:"detections"`
}

// NewHTTPDetector creates a detector for the given endpoint
func NewHTTPDetector(url string, timeout time.Duration, confidence float64) *HTTPDetector {
	return &HTTPDetector{
		url:        url,
		client:     &http.Client{Timeout: timeout},
		confidence: confidence,
	}
}

// Detect encodes the frame and returns the service's detections above the
// confidence threshold.
func (d *HTTPDetector) Detect(ctx context.Context, frame *types.Frame) ([]types.Detection, error) {
	var body bytes.Buffer
	if err := jpeg.Encode(&body, frame.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode detector response: %w", err)
	}

	dets := make([]types.Detection, 0, len(parsed.Detections))
	for _, raw := range parsed.Detections {
		dets = append(dets, types.Detection{
			ClassID:    raw.ClassID,
			ClassName:  raw.ClassName,
			Confidence: raw.Confidence,
			BBox: types.BoundingBox{
				X1: int(raw.BBox[0]),
				Y1: int(raw.BBox[1]),
				X2: int(raw.BBox[2]),
				Y2: int(raw.BBox[3]),
			},
		})
	}
	return AboveConfidence(dets, d.confidence), nil
}
