package kiosk

import (
	"image"

	"github.com/kozaktomas/punch-kiosk/internal/constants"
	"github.com/kozaktomas/punch-kiosk/internal/vision"
)

// FrameBox is a face region in the coordinates of the unscaled frame.
type FrameBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Rect converts the box to an image rectangle.
func (b FrameBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Scaled returns the box multiplied by factor, truncating toward zero.
func (b FrameBox) Scaled(factor float64) FrameBox {
	return FrameBox{
		Top:    int(float64(b.Top) * factor),
		Right:  int(float64(b.Right) * factor),
		Bottom: int(float64(b.Bottom) * factor),
		Left:   int(float64(b.Left) * factor),
	}
}

// Padded grows the box by fraction of its size on every side.
func (b FrameBox) Padded(fraction float64) FrameBox {
	padH := int(float64(b.Bottom-b.Top) * fraction)
	padW := int(float64(b.Right-b.Left) * fraction)
	return FrameBox{
		Top:    b.Top - padH,
		Right:  b.Right + padW,
		Bottom: b.Bottom + padH,
		Left:   b.Left - padW,
	}
}

// RegionFilter holds the region acceptance policy.
type RegionFilter struct {
	MinArea       float64 // relative to the frame
	MinConfidence float64
}

// SelectRegion picks the largest region passing the filter. Regions are
// relative to a frame of size scaledSize; the returned box is mapped back to
// the unscaled frame by dividing by scale.
func SelectRegion(regions []vision.Region, scaledSize image.Point, scale float64, f RegionFilter) (FrameBox, bool) {
	if scale <= 0 {
		scale = 1
	}
	inv := 1.0 / scale

	var (
		best    FrameBox
		maxArea int
		found   bool
	)
	for _, r := range regions {
		if r.Score < f.MinConfidence || r.Area() < f.MinArea || r.Height <= 0 {
			continue
		}
		ratio := r.Width / r.Height
		if ratio < constants.MinAspectRatio || ratio > constants.MaxAspectRatio {
			continue
		}

		px := r.Pixels(scaledSize)
		x, y := max(0, px.Min.X), max(0, px.Min.Y)
		w, h := px.Dx(), px.Dy()

		if area := w * h; area > maxArea {
			maxArea = area
			found = true
			best = FrameBox{
				Top:    int(float64(y) * inv),
				Right:  int(float64(x+w) * inv),
				Bottom: int(float64(y+h) * inv),
				Left:   int(float64(x) * inv),
			}
		}
	}
	return best, found
}
