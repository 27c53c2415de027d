package capture

import (
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// Mirror flips img horizontally into a new RGBA image with a zero origin.
func Mirror(img image.Image) *image.RGBA {
	src := asRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for x := range w {
			copy(out[(w-1-x)*4:(w-x)*4], row[x*4:(x+1)*4])
		}
	}
	return dst
}

// ToRGBA copies img into a new RGBA image with a zero origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func asRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	return ToRGBA(img)
}

// Scale resizes img by factor. Factors at or above 1 return img unchanged.
func Scale(img image.Image, factor float64) image.Image {
	if factor >= 1 || factor <= 0 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor))
	h := max(1, int(float64(b.Dy())*factor))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// FitWithin scales img down so neither side exceeds maxSize, keeping the aspect ratio.
func FitWithin(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Crop returns the part of img inside r, clipped to the image bounds.
// The result is empty when r lies outside img.
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return image.NewRGBA(image.Rectangle{})
	}
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// DecodeEncodedImage decodes an image stored as a data URL or raw base64.
func DecodeEncodedImage(s string) (image.Image, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = s[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return Decode(data)
}
