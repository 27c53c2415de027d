package kiosk

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/kozaktomas/punch-kiosk/internal/capture"
	"github.com/kozaktomas/punch-kiosk/internal/constants"
	"github.com/kozaktomas/punch-kiosk/internal/vision"
)

// LivenessResult is the outcome of one liveness evaluation.
type LivenessResult int

const (
	LivenessPending LivenessResult = iota
	LivenessPass
	LivenessExempt
	LivenessDisabled
)

func (r LivenessResult) String() string {
	switch r {
	case LivenessPass:
		return "pass"
	case LivenessExempt:
		return "exempt"
	case LivenessDisabled:
		return "disabled"
	default:
		return "pending"
	}
}

// Passed reports whether the candidate may proceed to READY.
func (r LivenessResult) Passed() bool {
	return r != LivenessPending
}

// LivenessSettings configures the head-turn check.
type LivenessSettings struct {
	Enabled   bool
	ExemptIDs []int
	YawLeft   float64
	YawRight  float64
}

// LivenessEvaluator decides whether a candidate has turned their head.
type LivenessEvaluator struct {
	predictor LandmarkPredictor
	settings  LivenessSettings
}

// NewLivenessEvaluator creates an evaluator backed by predictor.
func NewLivenessEvaluator(predictor LandmarkPredictor, settings LivenessSettings) *LivenessEvaluator {
	return &LivenessEvaluator{predictor: predictor, settings: settings}
}

var (
	errEmptyCrop      = errors.New("empty crop")
	errFewLandmarks   = errors.New("too few landmarks")
	errNoPredictorSet = errors.New("no landmark predictor")
)

// HeadPoseRatio is |nose - left jaw| / |nose - right jaw| over 68-point landmarks.
// A zero right distance yields 1.0.
func HeadPoseRatio(points []vision.Point) (float64, error) {
	if len(points) < constants.LandmarkCount {
		return 0, fmt.Errorf("%w: got %d", errFewLandmarks, len(points))
	}
	nose := points[constants.LandmarkNoseTip]
	left := points[constants.LandmarkJawLeft]
	right := points[constants.LandmarkJawRight]

	distLeft := math.Hypot(nose.X-left.X, nose.Y-left.Y)
	distRight := math.Hypot(nose.X-right.X, nose.Y-right.Y)
	if distRight == 0 {
		return 1.0, nil
	}
	return distLeft / distRight, nil
}

// Evaluate checks candidate id against the face in box. frame is the
// locator-scale frame and box is in the same coordinates. Errors are
// returned for logging only; the result is pending whenever err != nil.
func (e *LivenessEvaluator) Evaluate(ctx context.Context, frame image.Image, box FrameBox, id int) (LivenessResult, float64, error) {
	if !e.settings.Enabled {
		return LivenessDisabled, 0, nil
	}
	if slices.Contains(e.settings.ExemptIDs, id) {
		return LivenessExempt, 0, nil
	}
	if e.predictor == nil {
		return LivenessPending, 0, errNoPredictorSet
	}

	crop := capture.Crop(frame, box.Padded(constants.LivenessCropPadding).Rect())
	if crop.Bounds().Empty() {
		return LivenessPending, 0, errEmptyCrop
	}

	points, err := e.predictor.Landmarks(ctx, crop)
	if err != nil {
		return LivenessPending, 0, fmt.Errorf("predicting landmarks: %w", err)
	}

	ratio, err := HeadPoseRatio(points)
	if err != nil {
		return LivenessPending, 0, err
	}

	if ratio < e.settings.YawLeft || ratio > e.settings.YawRight {
		return LivenessPass, ratio, nil
	}
	return LivenessPending, ratio, nil
}
