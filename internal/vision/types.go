package vision

import "image"

// Region is a face detection in coordinates relative to the submitted image (0..1).
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Score  float64 `json:"score"`
}

// Area returns the relative area of the region.
func (r Region) Area() float64 {
	return r.Width * r.Height
}

// Pixels converts the region to pixel coordinates of an image of the given size.
func (r Region) Pixels(size image.Point) image.Rectangle {
	x := int(r.X * float64(size.X))
	y := int(r.Y * float64(size.Y))
	w := int(r.Width * float64(size.X))
	h := int(r.Height * float64(size.Y))
	return image.Rect(x, y, x+w, y+h)
}

// Point is a facial landmark in pixel coordinates of the submitted image.
type Point struct {
	X float64
	Y float64
}

type detectResponse struct {
	Regions []Region `json:"regions"`
}

type encodeResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type landmarksResponse struct {
	Landmarks [][2]float64 `json:"landmarks"`
}

type healthResponse struct {
	Status string `json:"status"`
}
