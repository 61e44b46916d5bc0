package types

import (
	"image"
	"time"
)

// Frame represents a single decoded camera frame with metadata
type Frame struct {
	Image     image.Image // Decoded pixels
	Timestamp time.Time   // Frame capture timestamp
	Seq       uint64      // Sequential frame number
	Width     int         // Frame width
	Height    int         // Frame height
}

// NewFrame wraps an image, filling size fields from its bounds
func NewFrame(img image.Image, seq uint64, ts time.Time) *Frame {
	b := img.Bounds()
	return &Frame{
		Image:     img,
		Timestamp: ts,
		Seq:       seq,
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
}

// BoundingBox is a detection box in pixel coordinates (top-left, bottom-right)
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the box to an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Detection is one object reported by a detection service
type Detection struct {
	ClassID    int         `json:"class_id"`
	ClassName  string      `json:"class_name"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// Detection class constants (COCO)
const (
	ClassPersonID   = 0
	ClassPersonName = "person"
)

// IsPerson reports whether the detection is of the person class
func (d Detection) IsPerson() bool {
	if d.ClassName != "" {
		return d.ClassName == ClassPersonName
	}
	return d.ClassID == ClassPersonID
}

// IndicatorState is the status shown on an indicator
type IndicatorState int

const (
	IndicatorOff IndicatorState = iota
	IndicatorAlert
	IndicatorOK
)

func (s IndicatorState) String() string {
	switch s {
	case IndicatorOff:
		return "OFF"
	case IndicatorAlert:
		return "ALERT"
	case IndicatorOK:
		return "OK"
	default:
		return "UNKNOWN"
	}
}
