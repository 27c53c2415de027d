package kiosk

import (
	"strings"

	"github.com/kozaktomas/punch-kiosk/internal/database"
)

// Phase is the stage of the recognition attempt.
type Phase int

const (
	PhaseScanning Phase = iota
	PhaseVerifying
	PhaseReady
	PhaseMarked
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseVerifying:
		return "verifying"
	case PhaseReady:
		return "ready"
	case PhaseMarked:
		return "marked"
	default:
		return "unknown"
	}
}

var phaseNames = []string{
	PhaseScanning.String(),
	PhaseVerifying.String(),
	PhaseReady.String(),
	PhaseMarked.String(),
}

// candidate is the identity captured when the streak completed.
type candidate struct {
	id          int
	name        string
	designation string
	distance    float64
	attempt     string // correlates log lines of one attempt
}

type phaseState interface {
	phase() Phase
}

type scanningState struct {
	streakID int
	streak   int
}

func (s *scanningState) clearStreak() {
	s.streakID = 0
	s.streak = 0
}

type verifyingState struct {
	cand    candidate
	rescans int
}

type readyState struct {
	cand       candidate
	rescans    int
	lastStatus database.Status
	idle       Timer
}

type markedState struct {
	cand    candidate
	outcome *database.Outcome // nil while the write is in flight
	timer   Timer
}

func (*scanningState) phase() Phase  { return PhaseScanning }
func (*verifyingState) phase() Phase { return PhaseVerifying }
func (*readyState) phase() Phase     { return PhaseReady }
func (*markedState) phase() Phase    { return PhaseMarked }

// sanitizeForLog strips line breaks from user-supplied strings.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
