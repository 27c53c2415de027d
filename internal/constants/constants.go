// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Detection cadence: the locator runs on every Nth frame depending on phase.
const (
	// ScanningDetectEvery is the detection stride while looking for a face
	ScanningDetectEvery = 2

	// VerifyingDetectEvery is the detection stride once a candidate is captured
	VerifyingDetectEvery = 3

	// LostAfterMissedFrames is the number of consecutive missed detections after
	// which streak and stabilization are cleared (the box is still drawn)
	LostAfterMissedFrames = 2
)

// Region filtering constants
const (
	// MinAspectRatio and MaxAspectRatio bound width/height of an accepted face region
	MinAspectRatio = 0.5
	MaxAspectRatio = 1.5

	// LivenessCropPadding is the fraction of the box size added on each side
	// before running the landmark predictor
	LivenessCropPadding = 0.15
)

// 68-point landmark indices used for the head pose ratio
const (
	LandmarkJawLeft  = 0
	LandmarkJawRight = 16
	LandmarkNoseTip  = 30
	LandmarkCount    = 68
)

// UI colors and texts shown on the kiosk
const (
	ColorDefaultName   = "#333333"
	ColorDefaultButton = "#888888"
	ColorCandidate     = "#0000AA"
	ColorPunchIn       = "#388E3C"
	ColorPunchOut      = "#D32F2F"
	ColorMarkedIn      = "#00cc00"
	ColorMarkedOut     = "#cc0000"
	ColorError         = "#ff0000"

	TextTurnHead  = "Please Turn Head Left/Right"
	TextPunchIn   = "PUNCH IN"
	TextPunchOut  = "PUNCH OUT"
	TextRecording = "Recording..."
)

// Streaming constants
const (
	// JPEGQuality is the quality used for the MJPEG video feed
	JPEGQuality = 80

	// EventChannelBuffer is the buffer size for status listener channels
	EventChannelBuffer = 16
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for enrollment
	WorkerPoolSize = 4

	// MaxImageSize is the maximum dimension (width or height) of an enrollment image
	MaxImageSize = 1920
)
