package kiosk

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"log"
	"time"

	"github.com/kozaktomas/punch-kiosk/internal/capture"
	"github.com/kozaktomas/punch-kiosk/internal/constants"
	"github.com/kozaktomas/punch-kiosk/internal/metrics"
)

// Loop pulls frames at a fixed rate, feeds them to the controller and
// publishes annotated frames to the hub.
type Loop struct {
	Source     capture.Source
	Controller *Controller
	Hub        *FrameHub
	FPS        int
	Mirror     bool
	Metrics    *metrics.Metrics

	failing bool
}

// Run processes frames until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	fps := l.FPS
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	log.Printf("kiosk: frame loop started at %d fps", fps)
	for {
		select {
		case <-ctx.Done():
			log.Printf("kiosk: frame loop stopped")
			return nil
		case <-ticker.C:
			l.Step(ctx)
		}
	}
}

// Step processes a single frame.
func (l *Loop) Step(ctx context.Context) {
	frame, err := l.Source.Frame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.Metrics.IncrementFrameErrors()
		// Log transitions only, a dead camera would otherwise flood the log.
		if !l.failing {
			l.failing = true
			if errors.Is(err, capture.ErrUnavailable) {
				log.Printf("kiosk: camera unavailable: %v", err)
			} else {
				log.Printf("kiosk: frame source error: %v", err)
			}
		}
		return
	}
	if l.failing {
		l.failing = false
		log.Printf("kiosk: camera recovered")
	}

	var canvas *image.RGBA
	if l.Mirror {
		canvas = capture.Mirror(frame)
	} else {
		canvas = capture.ToRGBA(frame)
	}

	overlay := l.Controller.Tick(ctx, canvas)

	if l.Hub == nil || l.Hub.Viewers() == 0 {
		return
	}
	Annotate(canvas, overlay)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: constants.JPEGQuality}); err != nil {
		log.Printf("kiosk: failed to encode frame: %v", err)
		return
	}
	l.Hub.Publish(buf.Bytes())
}
