// Package detect runs object detection on camera frames.
package detect

import (
	"context"
	"sort"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// Detector returns the objects found in a frame
type Detector interface {
	Detect(ctx context.Context, frame *types.Frame) ([]types.Detection, error)
}

// People keeps only person detections
func People(dets []types.Detection) []types.Detection {
	people := make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		if d.IsPerson() {
			people = append(people, d)
		}
	}
	return people
}

// AboveConfidence drops detections below the threshold
func AboveConfidence(dets []types.Detection, threshold float64) []types.Detection {
	if threshold <= 0 {
		return dets
	}
	kept := dets[:0:0]
	for _, d := range dets {
		if d.Confidence >= threshold {
			kept = append(kept, d)
		}
	}
	return kept
}

// IoU returns the intersection over union of two boxes
func IoU(a, b types.BoundingBox) float64 {
	inter := a.Rect().Intersect(b.Rect())
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Rect().Dx()*a.Rect().Dy()+b.Rect().Dx()*b.Rect().Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// NMS performs greedy non-maximum suppression per class, keeping the most
// confident box of any group overlapping above threshold.
func NMS(dets []types.Detection, threshold float64) []types.Detection {
	sorted := make([]types.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]types.Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && IoU(k.BBox, d.BBox) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}
