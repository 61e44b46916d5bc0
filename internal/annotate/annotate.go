// Package annotate draws detection overlays onto frames.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// Overlay colours
var (
	ColorAlert = color.RGBA{R: 255, A: 255}
	ColorOK    = color.RGBA{G: 255, A: 255}
)

const (
	boxThickness = 2
	textX        = 10
	textY        = 30 // baseline
)

// ColorFor returns red below the minimum and green otherwise
func ColorFor(count, min int) color.RGBA {
	if count < min {
		return ColorAlert
	}
	return ColorOK
}

// Frame returns an annotated RGBA copy of frame with a box around every
// person and a "People: N" label. The source frame is left untouched.
func Frame(frame *types.Frame, people []types.Detection, min int) *types.Frame {
	bounds := frame.Image.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, frame.Image, bounds.Min, draw.Src)

	col := ColorFor(len(people), min)
	for _, p := range people {
		Rectangle(rgba, p.BBox.Rect().Add(bounds.Min), col, boxThickness)
	}
	Label(rgba, fmt.Sprintf("People: %d", len(people)), image.Pt(bounds.Min.X+textX, bounds.Min.Y+textY), col)

	return &types.Frame{
		Image:     rgba,
		Timestamp: frame.Timestamp,
		Seq:       frame.Seq,
		Width:     frame.Width,
		Height:    frame.Height,
	}
}

// Rectangle draws an outline of the given thickness, clipped to the image
func Rectangle(img *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	rect = rect.Canon()
	src := image.NewUniform(col)
	for i := 0; i < thickness; i++ {
		r := rect.Inset(i)
		if r.Empty() {
			return
		}
		edges := []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), // top
			image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), // bottom
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), // left
			image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), // right
		}
		for _, e := range edges {
			draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
		}
	}
}

// Label draws text with its baseline starting at pt
func Label(img draw.Image, text string, pt image.Point, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(pt.X, pt.Y),
	}
	d.DrawString(text)
}
