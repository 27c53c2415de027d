package kiosk

import (
	"context"
	"image"

	"github.com/kozaktomas/punch-kiosk/internal/database"
	"github.com/kozaktomas/punch-kiosk/internal/gallery"
	"github.com/kozaktomas/punch-kiosk/internal/vision"
)

// Locator proposes face regions in a frame.
type Locator interface {
	Locate(ctx context.Context, img image.Image) ([]vision.Region, error)
}

// Encoder computes the embedding of the face inside box. A nil embedding
// means nothing could be encoded.
type Encoder interface {
	Encode(ctx context.Context, img image.Image, box image.Rectangle) ([]float32, error)
}

// LandmarkPredictor returns 68-point facial landmarks for the face in img.
type LandmarkPredictor interface {
	Landmarks(ctx context.Context, img image.Image) ([]vision.Point, error)
}

// Matcher resolves an embedding against the current gallery snapshot.
type Matcher interface {
	Match(query []float32) gallery.MatchResult
}

// AttendanceRecorder reports and toggles attendance. Neither method fails.
type AttendanceRecorder interface {
	LastStatus(ctx context.Context, id int) database.Status
	Mark(ctx context.Context, id int, name string) database.Outcome
}
