package kiosk

import (
	"context"
	"errors"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/punch-kiosk/internal/database"
	"github.com/kozaktomas/punch-kiosk/internal/database/mock"
	"github.com/kozaktomas/punch-kiosk/internal/gallery"
	"github.com/kozaktomas/punch-kiosk/internal/vision"
)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	// ignoreStop makes Stop report failure and leaves the timer armed, as
	// happens when a real timer has already fired but not yet run.
	ignoreStop bool
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.clock.ignoreStop || t.fired {
		return false
	}
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

// Advance moves time forward and runs due timers in order, outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of armed timers.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeLocator returns the same regions every call until changed.
type fakeLocator struct {
	mu      sync.Mutex
	regions []vision.Region
	err     error
	calls   int
}

var centeredFace = vision.Region{X: 0.3, Y: 0.3, Width: 0.4, Height: 0.4, Score: 0.99}

func (l *fakeLocator) Locate(ctx context.Context, img image.Image) ([]vision.Region, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.regions, l.err
}

func (l *fakeLocator) set(regions ...vision.Region) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.regions = regions
}

type fakeEncoder struct {
	err error
}

func (e *fakeEncoder) Encode(ctx context.Context, img image.Image, box image.Rectangle) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 2, 3}, nil
}

// scriptedMatcher answers with the next id of its script, 0 meaning unknown.
// The last id repeats once the script runs out.
type scriptedMatcher struct {
	mu     sync.Mutex
	script []int
	calls  int
}

func (m *scriptedMatcher) Match(query []float32) gallery.MatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := 0
	if len(m.script) > 0 {
		id = m.script[min(m.calls, len(m.script)-1)]
	}
	m.calls++
	if id == 0 || query == nil {
		return gallery.MatchResult{Reason: gallery.ReasonAboveThreshold}
	}
	return gallery.MatchResult{
		Accepted:    true,
		ID:          id,
		Name:        "Employee",
		Designation: "Operator",
		Distance:    0.25,
		Reason:      gallery.ReasonAccepted,
	}
}

func (m *scriptedMatcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeLandmarks places the nose so that the head pose ratio equals ratio.
type fakeLandmarks struct {
	mu    sync.Mutex
	ratio float64
	err   error
	calls int
}

func (p *fakeLandmarks) Landmarks(ctx context.Context, img image.Image) ([]vision.Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return landmarksWithRatio(p.ratio), nil
}

func (p *fakeLandmarks) setRatio(r float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ratio = r
}

func landmarksWithRatio(ratio float64) []vision.Point {
	points := make([]vision.Point, 68)
	points[30] = vision.Point{X: 50, Y: 50}
	points[0] = vision.Point{X: 50 - 20*ratio, Y: 50}
	points[16] = vision.Point{X: 70, Y: 50}
	return points
}

// blockingRecorder holds Mark until released.
type blockingRecorder struct {
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRecorder) LastStatus(ctx context.Context, id int) database.Status {
	return database.StatusOut
}

func (r *blockingRecorder) Mark(ctx context.Context, id int, name string) database.Outcome {
	close(r.entered)
	<-r.release
	return database.Outcome{Message: "MARKED IN", Color: "#00cc00", Status: database.StatusIn}
}

var errPredictor = errors.New("predictor unavailable")

type harness struct {
	ctrl      *Controller
	clock     *fakeClock
	locator   *fakeLocator
	matcher   *scriptedMatcher
	landmarks *fakeLandmarks
	backend   *mock.MockBackend
	recorder  *database.Recorder
	frame     image.Image
}

func testSettings() Settings {
	return Settings{
		Filter:              RegionFilter{MinArea: 0.03, MinConfidence: 0.95},
		ProcessScale:        1,
		StabilizationFrames: 0,
		RequiredStreak:      3,
		MaxMissedFrames:     2,
		RescanFrames:        300,
		ButtonTimeout:       5 * time.Second,
		ResetAfterPunch:     2 * time.Second,
		Liveness: LivenessSettings{
			Enabled:   true,
			ExemptIDs: []int{1, 2},
			YawLeft:   0.5,
			YawRight:  1.5,
		},
	}
}

func newHarness(settings Settings, script ...int) *harness {
	h := &harness{
		clock:     newFakeClock(),
		locator:   &fakeLocator{regions: []vision.Region{centeredFace}},
		matcher:   &scriptedMatcher{script: script},
		landmarks: &fakeLandmarks{ratio: 1.0},
		backend:   mock.NewMockBackend(),
		frame:     image.NewRGBA(image.Rect(0, 0, 100, 100)),
	}
	h.recorder = database.NewRecorder(h.backend, 71)
	h.recorder.SetClock(h.clock.Now)
	h.ctrl = NewController(settings, Deps{
		Locator:   h.locator,
		Encoder:   &fakeEncoder{},
		Landmarks: h.landmarks,
		Matcher:   h.matcher,
		Recorder:  h.recorder,
		Clock:     h.clock,
	})
	return h
}

// hangingStore blocks every attendance call until its context is done.
type hangingStore struct{}

func (hangingStore) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) error {
	<-ctx.Done()
	return ctx.Err()
}

func (hangingStore) ListAttendance(ctx context.Context, empID int, from, to time.Time) ([]database.AttendanceRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// withStore rebuilds the controller around a recorder over store.
func (h *harness) withStore(settings Settings, store database.AttendanceStore, timeout time.Duration) {
	h.recorder = database.NewRecorder(store, 71)
	h.recorder.SetClock(h.clock.Now)
	h.recorder.SetTimeout(timeout)
	h.ctrl = NewController(settings, Deps{
		Locator:   h.locator,
		Encoder:   &fakeEncoder{},
		Landmarks: h.landmarks,
		Matcher:   h.matcher,
		Recorder:  h.recorder,
		Clock:     h.clock,
	})
}

func (h *harness) tick() Overlay {
	return h.ctrl.Tick(context.Background(), h.frame)
}

func (h *harness) ticks(n int) {
	for range n {
		h.tick()
	}
}

// tickUntil ticks until the phase is reached, failing after limit cycles.
func (h *harness) tickUntil(p Phase, limit int) int {
	for i := 1; i <= limit; i++ {
		h.tick()
		if h.ctrl.Phase() == p {
			return i
		}
	}
	return -1
}
