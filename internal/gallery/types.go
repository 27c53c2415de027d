// Package gallery holds the in-memory set of known identities and the
// nearest-neighbor matcher that decides whether a face belongs to one of them.
package gallery

// Entry is one enrolled identity.
type Entry struct {
	ID          int
	Name        string
	Designation string
	Embedding   []float32
	Threshold   *float64 // per-identity acceptance threshold stored with the identity, if any
}

// Reason explains a match decision.
type Reason string

// Reason values reported with every MatchResult.
const (
	ReasonAccepted       Reason = "accepted"
	ReasonEmptyGallery   Reason = "empty_gallery"
	ReasonNoEncoding     Reason = "no_encoding"
	ReasonAboveThreshold Reason = "above_threshold"
	ReasonConfidenceGap  Reason = "confidence_gap"
)

// MatchResult is produced fresh by every match and never mutated afterwards.
type MatchResult struct {
	Accepted    bool
	ID          int
	Name        string
	Designation string
	Distance    float64   // best distance; also set on threshold/gap rejections
	Embedding   []float32 // query embedding of an accepted match
	Reason      Reason
}

// DisplayName is the candidate line shown on the kiosk.
func (r MatchResult) DisplayName() string {
	if r.Designation == "" {
		return r.Name
	}
	return r.Name + " - " + r.Designation
}

func unknown(reason Reason) MatchResult {
	return MatchResult{Reason: reason}
}
