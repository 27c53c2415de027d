package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestHTTPSource_Frame(t *testing.T) {
	data := encodePNG(t, solid(8, 6, color.RGBA{R: 255, A: 255}))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	img, err := NewHTTPSource(server.URL, time.Second).Frame(context.Background())
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
}

func TestHTTPSource_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
		}},
		{"not an image", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("hello"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewHTTPSource(server.URL, time.Second).Frame(context.Background())
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b.png"), encodePNG(t, solid(4, 4, color.RGBA{G: 255, A: 255})), 0o600)
	os.WriteFile(filepath.Join(dir, "a.png"), encodePNG(t, solid(2, 2, color.RGBA{R: 255, A: 255})), 0o600)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600)

	src, err := NewDirSource(dir)
	if err != nil {
		t.Fatalf("NewDirSource() error = %v", err)
	}
	if src.Len() != 2 {
		t.Fatalf("expected 2 images, got %d", src.Len())
	}

	wantWidths := []int{2, 4, 2}
	for i, want := range wantWidths {
		img, err := src.Frame(context.Background())
		if err != nil {
			t.Fatalf("Frame() #%d error = %v", i, err)
		}
		if img.Bounds().Dx() != want {
			t.Errorf("frame %d: expected width %d, got %d", i, want, img.Bounds().Dx())
		}
	}
}

func TestDirSource_Empty(t *testing.T) {
	if _, err := NewDirSource(t.TempDir()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for empty dir, got %v", err)
	}
}

func TestMirror(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(2, 0, color.RGBA{B: 255, A: 255})

	got := Mirror(img)

	if c := got.RGBAAt(0, 0); c.B != 255 {
		t.Errorf("expected blue on the left after mirroring, got %v", c)
	}
	if c := got.RGBAAt(2, 0); c.R != 255 {
		t.Errorf("expected red on the right after mirroring, got %v", c)
	}
}

func TestScale(t *testing.T) {
	img := solid(100, 50, color.RGBA{A: 255})

	if got := Scale(img, 1.0); got != image.Image(img) {
		t.Error("expected scale 1.0 to return the input")
	}
	got := Scale(img, 0.5)
	if got.Bounds().Dx() != 50 || got.Bounds().Dy() != 25 {
		t.Errorf("unexpected scaled bounds %v", got.Bounds())
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		wantW int
		wantH int
	}{
		{"small stays", 100, 80, 100, 80},
		{"landscape", 400, 200, 100, 50},
		{"portrait", 200, 400, 50, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitWithin(solid(tt.w, tt.h, color.RGBA{A: 255}), 100)
			if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
				t.Errorf("FitWithin() = %v, want %dx%d", got.Bounds(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestCrop(t *testing.T) {
	img := solid(10, 10, color.RGBA{A: 255})

	if got := Crop(img, image.Rect(-5, -5, 4, 3)); got.Bounds() != image.Rect(0, 0, 4, 3) {
		t.Errorf("expected crop clipped to image, got %v", got.Bounds())
	}
	if got := Crop(img, image.Rect(20, 20, 30, 30)); !got.Bounds().Empty() {
		t.Errorf("expected empty crop outside image, got %v", got.Bounds())
	}
}

func TestDecodeEncodedImage(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(encodePNG(t, solid(3, 2, color.RGBA{A: 255})))

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"raw base64", raw, false},
		{"data url", "data:image/png;base64," + raw, false},
		{"bad base64", "!!!", true},
		{"malformed data url", "data:image/png;base64", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeEncodedImage(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeEncodedImage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && img.Bounds().Dx() != 3 {
				t.Errorf("unexpected bounds %v", img.Bounds())
			}
		})
	}
}

func TestToRGBA_Copies(t *testing.T) {
	img := solid(2, 2, color.RGBA{R: 10, A: 255})
	out := ToRGBA(img)
	out.SetRGBA(0, 0, color.RGBA{B: 255, A: 255})

	if img.RGBAAt(0, 0).B != 0 {
		t.Error("expected ToRGBA to return an independent copy")
	}
}
