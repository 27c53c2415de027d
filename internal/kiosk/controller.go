// Package kiosk turns frames into a debounced, liveness-checked identity
// decision and drives the punch screen.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/punch-kiosk/internal/capture"
	"github.com/kozaktomas/punch-kiosk/internal/config"
	"github.com/kozaktomas/punch-kiosk/internal/constants"
	"github.com/kozaktomas/punch-kiosk/internal/database"
	"github.com/kozaktomas/punch-kiosk/internal/gallery"
	"github.com/kozaktomas/punch-kiosk/internal/metrics"
)

// ErrNoCandidate is returned by Punch when no identity is ready.
var ErrNoCandidate = errors.New("no candidate ready to punch")

// Settings are the recognition and timing parameters of a controller.
type Settings struct {
	Filter              RegionFilter
	ProcessScale        float64
	StabilizationFrames int
	RequiredStreak      int
	MaxMissedFrames     int
	RescanFrames        int
	ButtonTimeout       time.Duration
	ResetAfterPunch     time.Duration
	Liveness            LivenessSettings
}

// SettingsFromConfig extracts controller settings from the loaded config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Filter: RegionFilter{
			MinArea:       cfg.Recognition.MinFaceArea,
			MinConfidence: cfg.Recognition.MinDetectionConf,
		},
		ProcessScale:        cfg.Camera.ProcessScale,
		StabilizationFrames: cfg.Recognition.StabilizationFrames,
		RequiredStreak:      cfg.Recognition.RequiredStreak,
		MaxMissedFrames:     cfg.Recognition.MaxMissedFrames,
		RescanFrames:        cfg.RescanFrames(),
		ButtonTimeout:       cfg.Timing.ButtonTimeout,
		ResetAfterPunch:     cfg.Timing.ResetAfterPunch,
		Liveness: LivenessSettings{
			Enabled:   cfg.Liveness.Enabled,
			ExemptIDs: cfg.Liveness.ExemptIDs,
			YawLeft:   cfg.Liveness.YawLeft,
			YawRight:  cfg.Liveness.YawRight,
		},
	}
}

// Deps are the collaborators of a controller. Clock and Metrics are optional.
type Deps struct {
	Locator   Locator
	Encoder   Encoder
	Landmarks LandmarkPredictor
	Matcher   Matcher
	Recorder  AttendanceRecorder
	Clock     Clock
	Metrics   *metrics.Metrics
}

// Controller owns the session state. Every read and write of the state goes
// through mu; the UI projection is published separately so readers never
// wait for a cycle to finish.
type Controller struct {
	settings Settings
	deps     Deps
	clock    Clock
	liveness *LivenessEvaluator

	mu         sync.Mutex
	state      phaseState
	debounce   *Debouncer
	generation uint64

	status      atomic.Pointer[UIStatus]
	broadcaster Broadcaster
}

// NewController creates a controller in SCANNING.
func NewController(settings Settings, deps Deps) *Controller {
	if settings.ProcessScale <= 0 {
		settings.ProcessScale = 1
	}
	clock := deps.Clock
	if clock == nil {
		clock = realClock{}
	}

	c := &Controller{
		settings: settings,
		deps:     deps,
		clock:    clock,
		liveness: NewLivenessEvaluator(deps.Landmarks, settings.Liveness),
		state:    &scanningState{},
		debounce: NewDebouncer(settings.StabilizationFrames, settings.MaxMissedFrames),
	}
	initial := defaultStatus()
	c.status.Store(&initial)
	deps.Metrics.SetPhase(PhaseScanning.String(), phaseNames)
	return c
}

// Status returns the current UI projection.
func (c *Controller) Status() UIStatus {
	return *c.status.Load()
}

// Broadcaster returns the status broadcaster for push subscribers.
func (c *Controller) Broadcaster() *Broadcaster {
	return &c.broadcaster
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.phase()
}

// Tick processes one frame and returns what should be drawn on it.
func (c *Controller) Tick(ctx context.Context, frame image.Image) Overlay {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deps.Metrics.IncrementCycles()
	cycle := &cycleFrame{full: frame, scale: c.settings.ProcessScale}
	overlay := Overlay{Tone: ToneDefault}

	sampled := c.debounce.NextCycle(c.state.phase())
	if sampled {
		box, found := c.detect(ctx, cycle)
		obs := c.debounce.Observe(box, found)
		if obs.Lost {
			if st, ok := c.state.(*scanningState); ok {
				st.clearStreak()
			}
		}
		if obs.Reset {
			c.resetLocked("missed_frames")
			return Overlay{}
		}
	}

	switch st := c.state.(type) {
	case *scanningState:
		c.tickScanning(ctx, st, cycle, sampled, &overlay)
	case *verifyingState:
		if c.countRescan(&st.rescans) {
			return Overlay{}
		}
		c.tickVerifying(ctx, st, cycle)
	case *readyState:
		if c.countRescan(&st.rescans) {
			return Overlay{}
		}
	}

	// The phase may have changed above.
	switch st := c.state.(type) {
	case *verifyingState:
		overlay.setScore(st.cand.distance)
	case *readyState:
		overlay.Tone = ToneReady
		overlay.setScore(st.cand.distance)
	}
	if box, ok := c.debounce.Box(); ok {
		overlay.Box = box
		overlay.HasBox = true
	}
	return overlay
}

// detect runs the locator on the scaled frame. Locator errors count as no detection.
func (c *Controller) detect(ctx context.Context, cycle *cycleFrame) (FrameBox, bool) {
	if c.deps.Locator == nil {
		return FrameBox{}, false
	}
	small := cycle.small()

	start := time.Now()
	regions, err := c.deps.Locator.Locate(ctx, small)
	c.deps.Metrics.ObserveVision("locate", time.Since(start))
	if err != nil {
		log.Printf("kiosk: region locator failed: %v", err)
		c.deps.Metrics.IncrementDetection("error")
		return FrameBox{}, false
	}

	box, found := SelectRegion(regions, small.Bounds().Size(), cycle.scale, c.settings.Filter)
	if found {
		c.deps.Metrics.IncrementDetection("found")
	} else {
		c.deps.Metrics.IncrementDetection("missed")
	}
	return box, found
}

func (c *Controller) tickScanning(ctx context.Context, st *scanningState, cycle *cycleFrame, sampled bool, overlay *Overlay) {
	box, ok := c.debounce.Box()
	if !ok {
		return
	}
	if !c.debounce.Stabilize() {
		overlay.Tone = ToneStabilizing
		return
	}
	// A sampled cycle that missed still matches against the last box.
	if !sampled {
		return
	}

	result := c.recognize(ctx, cycle, box)
	if !result.Accepted {
		st.clearStreak()
		overlay.Tone = ToneUnknown
		return
	}

	if st.streak > 0 && st.streakID == result.ID {
		st.streak++
	} else {
		st.streak = 1
		st.streakID = result.ID
	}
	if st.streak < c.settings.RequiredStreak {
		return
	}

	cand := candidate{
		id:          result.ID,
		name:        result.Name,
		designation: result.Designation,
		distance:    result.Distance,
		attempt:     uuid.NewString(),
	}
	c.debounce.ClearMissed()
	c.setState(&verifyingState{cand: cand})
	log.Printf("kiosk: [%s] candidate %d (%s) captured at distance %.3f", cand.attempt, cand.id, sanitizeForLog(cand.name), cand.distance)

	c.publish(func(s *UIStatus) {
		s.Name = result.DisplayName()
		s.NameColor = constants.ColorCandidate
		s.Subtext = ""
		s.ShowButton = false
	})
}

func (c *Controller) recognize(ctx context.Context, cycle *cycleFrame, box FrameBox) gallery.MatchResult {
	if c.deps.Encoder == nil || c.deps.Matcher == nil {
		return gallery.MatchResult{Reason: gallery.ReasonNoEncoding}
	}
	small := cycle.small()

	start := time.Now()
	embedding, err := c.deps.Encoder.Encode(ctx, small, box.Scaled(cycle.scale).Rect())
	c.deps.Metrics.ObserveVision("encode", time.Since(start))
	if err != nil {
		log.Printf("kiosk: encoder failed: %v", err)
		embedding = nil
	}

	result := c.deps.Matcher.Match(embedding)
	c.deps.Metrics.IncrementMatch(string(result.Reason))
	return result
}

// countRescan advances the rescan budget shared by VERIFYING and READY and
// resets the session when it runs out. It reports whether a reset happened.
func (c *Controller) countRescan(rescans *int) bool {
	if _, ok := c.debounce.Box(); !ok {
		return false
	}
	*rescans++
	if *rescans >= c.settings.RescanFrames {
		c.resetLocked("rescan_timeout")
		return true
	}
	return false
}

func (c *Controller) tickVerifying(ctx context.Context, st *verifyingState, cycle *cycleFrame) {
	box, ok := c.debounce.Box()
	if !ok {
		return
	}

	start := time.Now()
	result, ratio, err := c.liveness.Evaluate(ctx, cycle.small(), box.Scaled(cycle.scale), st.cand.id)
	if result != LivenessExempt && result != LivenessDisabled {
		c.deps.Metrics.ObserveVision("landmarks", time.Since(start))
	}
	c.deps.Metrics.IncrementLiveness(result.String())

	if !result.Passed() {
		if err != nil && !errors.Is(err, errEmptyCrop) {
			log.Printf("kiosk: [%s] liveness check failed: %v", st.cand.attempt, err)
		}
		c.publish(func(s *UIStatus) { s.Subtext = constants.TextTurnHead })
		return
	}

	if result == LivenessPass {
		log.Printf("kiosk: [%s] liveness passed with ratio %.2f", st.cand.attempt, ratio)
	}
	c.enterReady(ctx, st.cand, st.rescans)
}

// enterReady shows the punch button and starts the idle timer.
func (c *Controller) enterReady(ctx context.Context, cand candidate, rescans int) {
	last := database.StatusOut
	if c.deps.Recorder != nil {
		last = c.deps.Recorder.LastStatus(ctx, cand.id)
	}

	text, color := constants.TextPunchIn, constants.ColorPunchIn
	if last == database.StatusIn {
		text, color = constants.TextPunchOut, constants.ColorPunchOut
	}

	st := &readyState{cand: cand, rescans: rescans, lastStatus: last}
	st.idle = c.schedule(c.settings.ButtonTimeout, "idle_timeout")
	c.setState(st)

	c.publish(func(s *UIStatus) {
		s.Subtext = ""
		s.ShowButton = true
		s.ButtonText = text
		s.ButtonColor = color
	})
}

// Punch records attendance for the ready candidate. The write happens outside
// the session lock; the outcome is only shown if nothing reset the session
// in the meantime.
func (c *Controller) Punch(ctx context.Context) (database.Outcome, error) {
	c.mu.Lock()
	st, ok := c.state.(*readyState)
	if !ok {
		c.mu.Unlock()
		return database.Outcome{}, ErrNoCandidate
	}
	stopTimer(st.idle)
	c.generation++
	gen := c.generation
	cand := st.cand
	c.setState(&markedState{cand: cand})
	c.debounce.ClearBox()
	c.publish(func(s *UIStatus) {
		s.Name = constants.TextRecording
		s.NameColor = constants.ColorDefaultName
		s.Subtext = ""
		s.ShowButton = false
	})
	c.mu.Unlock()

	var outcome database.Outcome
	if c.deps.Recorder != nil {
		outcome = c.deps.Recorder.Mark(context.WithoutCancel(ctx), cand.id, cand.name)
	} else {
		outcome = database.Outcome{
			Message: "Error: no attendance recorder",
			Color:   constants.ColorError,
			Status:  database.StatusError,
			At:      c.clock.Now(),
		}
	}
	c.deps.Metrics.IncrementPunch(string(outcome.Status))
	log.Printf("kiosk: [%s] punch for %d: %s", cand.attempt, cand.id, outcome.Status)

	c.mu.Lock()
	defer c.mu.Unlock()
	ms, ok := c.state.(*markedState)
	if !ok || c.generation != gen {
		return outcome, nil
	}
	ms.outcome = &outcome
	ms.timer = c.schedule(c.settings.ResetAfterPunch, "punch_complete")

	at := outcome.At
	if at.IsZero() {
		at = c.clock.Now()
	}
	c.publish(func(s *UIStatus) {
		s.Name = outcome.Message
		s.NameColor = outcome.Color
		s.Subtext = fmt.Sprintf("Time: %s", at.Format("15:04:05"))
		s.ShowButton = false
	})
	return outcome, nil
}

// Reset returns the session to SCANNING.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked("manual")
}

// schedule starts a timer that resets the session unless the session has
// been reset or punched since. Callers hold mu.
func (c *Controller) schedule(d time.Duration, cause string) Timer {
	gen := c.generation
	return c.clock.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen {
			return
		}
		c.resetLocked(cause)
	})
}

// resetLocked is the single reset path. Callers hold mu.
func (c *Controller) resetLocked(cause string) {
	idle := false
	switch st := c.state.(type) {
	case *scanningState:
		_, hasBox := c.debounce.Box()
		idle = !hasBox && st.streak == 0
	case *readyState:
		stopTimer(st.idle)
	case *markedState:
		stopTimer(st.timer)
	}

	c.generation++
	c.debounce.Reset()
	c.setState(&scanningState{})

	initial := defaultStatus()
	c.store(initial)

	if !idle {
		c.deps.Metrics.IncrementReset(cause)
		log.Printf("kiosk: session reset (%s)", cause)
	}
}

func (c *Controller) setState(st phaseState) {
	prev := c.state.phase()
	c.state = st
	if next := st.phase(); next != prev {
		c.deps.Metrics.SetPhase(next.String(), phaseNames)
	}
}

// publish applies update to a copy of the current status. Callers hold mu.
func (c *Controller) publish(update func(*UIStatus)) {
	next := *c.status.Load()
	update(&next)
	c.store(next)
}

func (c *Controller) store(next UIStatus) {
	next.Phase = c.state.phase().String()
	if *c.status.Load() == next {
		return
	}
	c.status.Store(&next)
	c.broadcaster.Send(next)
}

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}

// cycleFrame lazily produces the locator-scale frame of one cycle.
type cycleFrame struct {
	full   image.Image
	scale  float64
	scaled image.Image
}

func (f *cycleFrame) small() image.Image {
	if f.scaled == nil {
		f.scaled = capture.Scale(f.full, f.scale)
	}
	return f.scaled
}
