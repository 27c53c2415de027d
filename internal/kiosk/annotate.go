package kiosk

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Tone is the box color of a cycle.
type Tone int

const (
	ToneDefault Tone = iota
	ToneStabilizing
	ToneUnknown
	ToneReady
)

var toneColors = map[Tone]color.RGBA{
	ToneDefault:     {R: 255, G: 165, A: 255},
	ToneStabilizing: {R: 255, G: 255, A: 255},
	ToneUnknown:     {R: 255, A: 255},
	ToneReady:       {G: 255, A: 255},
}

var scoreColor = color.RGBA{R: 252, G: 145, B: 8, A: 255}

const boxThickness = 2

// Overlay is what the controller wants drawn on a frame.
type Overlay struct {
	Box      FrameBox
	HasBox   bool
	Tone     Tone
	Score    float64 // similarity shown above the box, 1 - distance
	HasScore bool
}

func (o *Overlay) setScore(distance float64) {
	o.Score = 1 - distance
	o.HasScore = true
}

// Annotate draws the overlay onto img in place.
func Annotate(img draw.Image, o Overlay) {
	if !o.HasBox {
		return
	}
	c := toneColors[o.Tone]
	r := o.Box.Rect()
	src := image.NewUniform(c)

	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxThickness),
		image.Rect(r.Min.X, r.Max.Y-boxThickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxThickness, r.Max.Y),
		image.Rect(r.Max.X-boxThickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
	}

	if o.HasScore {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(scoreColor),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(r.Min.X, max(basicfont.Face7x13.Ascent, r.Min.Y-5)),
		}
		d.DrawString(fmt.Sprintf("%.3f", o.Score))
	}
}
