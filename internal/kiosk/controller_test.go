package kiosk

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/punch-kiosk/internal/constants"
	"github.com/kozaktomas/punch-kiosk/internal/database"
)

func TestController_StartsScanning(t *testing.T) {
	h := newHarness(testSettings())

	if got := h.ctrl.Phase(); got != PhaseScanning {
		t.Errorf("expected scanning, got %s", got)
	}
	status := h.ctrl.Status()
	if status.Name != "" || status.ShowButton || status.NameColor != constants.ColorDefaultName {
		t.Errorf("unexpected initial status %+v", status)
	}
	if status.Phase != "scanning" {
		t.Errorf("expected phase scanning in status, got %q", status.Phase)
	}
}

func TestController_StreakPromotesOnThirdMatch(t *testing.T) {
	h := newHarness(testSettings(), 7)

	for h.matcher.Calls() < 2 {
		h.tick()
	}
	if got := h.ctrl.Phase(); got != PhaseScanning {
		t.Fatalf("expected scanning after 2 matches, got %s", got)
	}

	for h.matcher.Calls() < 3 {
		h.tick()
	}
	if got := h.ctrl.Phase(); got != PhaseVerifying {
		t.Fatalf("expected verifying after 3rd match, got %s", got)
	}

	status := h.ctrl.Status()
	if status.Name != "Employee - Operator" {
		t.Errorf("expected candidate name with designation, got %q", status.Name)
	}
	if status.NameColor != constants.ColorCandidate {
		t.Errorf("expected candidate color, got %q", status.NameColor)
	}
	if status.ShowButton {
		t.Error("button must be hidden while verifying")
	}
}

func TestController_MatchesOnlyOnSampledCycles(t *testing.T) {
	h := newHarness(testSettings(), 7)

	h.ticks(5)

	// Cycles 2 and 4 run detection while scanning.
	if got := h.matcher.Calls(); got != 2 {
		t.Errorf("expected 2 matcher calls after 5 cycles, got %d", got)
	}
}

func TestController_UnknownBreaksStreak(t *testing.T) {
	h := newHarness(testSettings(), 7, 7, 0, 7, 7, 7)

	for h.matcher.Calls() < 5 {
		h.tick()
		if h.ctrl.Phase() != PhaseScanning {
			t.Fatalf("left scanning after %d matches", h.matcher.Calls())
		}
	}
	for h.matcher.Calls() < 6 {
		h.tick()
	}
	if got := h.ctrl.Phase(); got != PhaseVerifying {
		t.Errorf("expected verifying after 3 consecutive matches, got %s", got)
	}
}

func TestController_IdentityChangeRestartsStreak(t *testing.T) {
	h := newHarness(testSettings(), 7, 7, 8, 8, 8)

	for h.matcher.Calls() < 4 {
		h.tick()
	}
	if got := h.ctrl.Phase(); got != PhaseScanning {
		t.Fatalf("expected scanning after 7,7,8,8, got %s", got)
	}
	for h.matcher.Calls() < 5 {
		h.tick()
	}
	if got := h.ctrl.Phase(); got != PhaseVerifying {
		t.Fatalf("expected verifying, got %s", got)
	}
	h.ctrl.mu.Lock()
	id := h.ctrl.state.(*verifyingState).cand.id
	h.ctrl.mu.Unlock()
	if id != 8 {
		t.Errorf("expected candidate 8, got %d", id)
	}
}

func TestController_StabilizationDelaysMatching(t *testing.T) {
	settings := testSettings()
	settings.StabilizationFrames = 5
	h := newHarness(settings, 7)

	var tones []Tone
	for range 7 {
		tones = append(tones, h.tick().Tone)
	}
	if got := h.matcher.Calls(); got != 0 {
		t.Fatalf("expected no matching during stabilization, got %d calls", got)
	}
	// Box first seen on cycle 2, cycles 2..6 stabilize.
	for i := 1; i < 6; i++ {
		if tones[i] != ToneStabilizing {
			t.Errorf("cycle %d: expected stabilizing tone, got %v", i+1, tones[i])
		}
	}

	h.tick()
	if got := h.matcher.Calls(); got != 1 {
		t.Errorf("expected first match on cycle 8, got %d calls", got)
	}
}

func TestController_UnknownFaceTone(t *testing.T) {
	h := newHarness(testSettings(), 0)

	h.tick()
	overlay := h.tick()

	if !overlay.HasBox {
		t.Fatal("expected a box")
	}
	if overlay.Tone != ToneUnknown {
		t.Errorf("expected unknown tone, got %v", overlay.Tone)
	}
	if overlay.HasScore {
		t.Error("unexpected score for an unknown face")
	}
}

func TestController_MissedFramesResetScanning(t *testing.T) {
	h := newHarness(testSettings(), 7)

	for h.matcher.Calls() < 1 {
		h.tick()
	}
	h.locator.set()

	// Cycles 4 and 6 miss; the first still matches the stale box.
	h.ticks(4)

	h.ctrl.mu.Lock()
	st := h.ctrl.state.(*scanningState)
	streak := st.streak
	_, hasBox := h.ctrl.debounce.Box()
	h.ctrl.mu.Unlock()

	if streak != 0 || hasBox {
		t.Errorf("expected cleared session, got streak %d box %v", streak, hasBox)
	}
}

func TestController_MissedFramesResetVerifying(t *testing.T) {
	h := newHarness(testSettings(), 7)

	if h.tickUntil(PhaseVerifying, 20) < 0 {
		t.Fatal("never reached verifying")
	}
	h.locator.set()

	// Detection runs every third cycle while verifying; two misses reset.
	if n := h.tickUntil(PhaseScanning, 6); n < 0 {
		t.Fatal("expected reset after missed frames")
	}
	if status := h.ctrl.Status(); status.Name != "" || status.NameColor != constants.ColorDefaultName {
		t.Errorf("expected default status after reset, got %+v", status)
	}
}

func TestController_RescanLimit(t *testing.T) {
	h := newHarness(testSettings(), 7)

	if h.tickUntil(PhaseVerifying, 20) < 0 {
		t.Fatal("never reached verifying")
	}

	h.ticks(299)
	if got := h.ctrl.Phase(); got != PhaseVerifying {
		t.Fatalf("expected verifying after 299 rescan cycles, got %s", got)
	}
	if status := h.ctrl.Status(); status.Subtext != constants.TextTurnHead {
		t.Errorf("expected head turn prompt, got %q", status.Subtext)
	}

	h.tick()
	if got := h.ctrl.Phase(); got != PhaseScanning {
		t.Errorf("expected reset on 300th rescan cycle, got %s", got)
	}
}

func TestController_RescanBudgetCarriesIntoReady(t *testing.T) {
	settings := testSettings()
	settings.RescanFrames = 10
	h := newHarness(settings, 7)

	if h.tickUntil(PhaseVerifying, 20) < 0 {
		t.Fatal("never reached verifying")
	}
	h.ticks(4)
	h.landmarks.setRatio(0.3)
	h.tick()
	if got := h.ctrl.Phase(); got != PhaseReady {
		t.Fatalf("expected ready, got %s", got)
	}

	h.ticks(4)
	if got := h.ctrl.Phase(); got != PhaseReady {
		t.Fatalf("expected ready after 9 rescan cycles, got %s", got)
	}
	h.tick()
	if got := h.ctrl.Phase(); got != PhaseScanning {
		t.Errorf("expected reset on 10th rescan cycle, got %s", got)
	}
}

func TestController_LivenessPaths(t *testing.T) {
	tests := []struct {
		name          string
		id            int
		enabled       bool
		ratio         float64
		wantPhase     Phase
		wantPredictor bool
	}{
		{"looking straight stays verifying", 7, true, 1.0, PhaseVerifying, true},
		{"turned left passes", 7, true, 0.3, PhaseReady, true},
		{"turned right passes", 7, true, 1.8, PhaseReady, true},
		{"exempt identity skips check", 1, true, 1.0, PhaseReady, false},
		{"disabled skips check", 7, false, 1.0, PhaseReady, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			settings.Liveness.Enabled = tt.enabled
			h := newHarness(settings, tt.id)
			h.landmarks.setRatio(tt.ratio)

			if h.tickUntil(PhaseVerifying, 20) < 0 {
				t.Fatal("never reached verifying")
			}
			h.tick()

			if got := h.ctrl.Phase(); got != tt.wantPhase {
				t.Errorf("expected %s, got %s", tt.wantPhase, got)
			}
			if called := h.landmarks.calls > 0; called != tt.wantPredictor {
				t.Errorf("predictor called = %v, want %v", called, tt.wantPredictor)
			}
		})
	}
}

func TestController_PredictorErrorKeepsVerifying(t *testing.T) {
	h := newHarness(testSettings(), 7)
	h.landmarks.err = errPredictor

	if h.tickUntil(PhaseVerifying, 20) < 0 {
		t.Fatal("never reached verifying")
	}
	h.ticks(3)

	if got := h.ctrl.Phase(); got != PhaseVerifying {
		t.Errorf("expected verifying, got %s", got)
	}
	if status := h.ctrl.Status(); status.Subtext != constants.TextTurnHead {
		t.Errorf("expected head turn prompt, got %q", status.Subtext)
	}
}

// readyHarness drives a harness into READY.
func readyHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	h := newHarness(settings, 1)
	if h.tickUntil(PhaseReady, 20) < 0 {
		t.Fatal("never reached ready")
	}
	return h
}

func TestController_ReadyShowsPunchIn(t *testing.T) {
	h := readyHarness(t, testSettings())

	status := h.ctrl.Status()
	if !status.ShowButton {
		t.Fatal("expected button shown")
	}
	if status.ButtonText != constants.TextPunchIn || status.ButtonColor != constants.ColorPunchIn {
		t.Errorf("expected punch in button, got %q %q", status.ButtonText, status.ButtonColor)
	}
	if status.Subtext != "" {
		t.Errorf("expected prompt cleared, got %q", status.Subtext)
	}

	overlay := h.tick()
	if overlay.Tone != ToneReady {
		t.Errorf("expected ready tone, got %v", overlay.Tone)
	}
	if !overlay.HasScore || overlay.Score != 0.75 {
		t.Errorf("expected score 0.75, got %v (%v)", overlay.Score, overlay.HasScore)
	}
}

func TestController_ReadyShowsPunchOutAfterIn(t *testing.T) {
	h := newHarness(testSettings(), 1)
	h.backend.InsertAttendance(context.Background(), database.AttendanceRecord{
		EmpID:     1,
		Status:    database.StatusIn,
		Timestamp: h.clock.Now().Add(-time.Hour),
	})

	if h.tickUntil(PhaseReady, 20) < 0 {
		t.Fatal("never reached ready")
	}
	status := h.ctrl.Status()
	if status.ButtonText != constants.TextPunchOut || status.ButtonColor != constants.ColorPunchOut {
		t.Errorf("expected punch out button, got %q %q", status.ButtonText, status.ButtonColor)
	}
}

func TestController_IdleTimeoutResets(t *testing.T) {
	h := readyHarness(t, testSettings())

	h.clock.Advance(4 * time.Second)
	if got := h.ctrl.Phase(); got != PhaseReady {
		t.Fatalf("expected ready before timeout, got %s", got)
	}

	h.clock.Advance(time.Second)
	if got := h.ctrl.Phase(); got != PhaseScanning {
		t.Errorf("expected reset on button timeout, got %s", got)
	}
	if h.ctrl.Status().ShowButton {
		t.Error("expected button hidden after timeout")
	}
}

func TestController_PunchWithoutCandidate(t *testing.T) {
	h := newHarness(testSettings(), 7)

	if _, err := h.ctrl.Punch(context.Background()); !errors.Is(err, ErrNoCandidate) {
		t.Errorf("expected ErrNoCandidate while scanning, got %v", err)
	}

	if h.tickUntil(PhaseVerifying, 20) < 0 {
		t.Fatal("never reached verifying")
	}
	if _, err := h.ctrl.Punch(context.Background()); !errors.Is(err, ErrNoCandidate) {
		t.Errorf("expected ErrNoCandidate while verifying, got %v", err)
	}
	if len(h.backend.Records()) != 0 {
		t.Error("expected no attendance written")
	}
}

func TestController_Punch(t *testing.T) {
	h := readyHarness(t, testSettings())

	outcome, err := h.ctrl.Punch(context.Background())
	if err != nil {
		t.Fatalf("Punch() error = %v", err)
	}
	if outcome.Status != database.StatusIn || outcome.Message != "MARKED IN" {
		t.Errorf("unexpected outcome %+v", outcome)
	}

	if got := h.ctrl.Phase(); got != PhaseMarked {
		t.Fatalf("expected marked, got %s", got)
	}
	status := h.ctrl.Status()
	if status.Name != "MARKED IN" || status.NameColor != constants.ColorMarkedIn {
		t.Errorf("unexpected marked status %+v", status)
	}
	if status.Subtext != "Time: 08:00:00" {
		t.Errorf("expected punch time subtext, got %q", status.Subtext)
	}
	if status.ShowButton {
		t.Error("expected button hidden after punch")
	}

	records := h.backend.Records()
	if len(records) != 1 || records[0].EmpID != 1 || records[0].DeviceID != 71 {
		t.Errorf("unexpected records %+v", records)
	}

	// A second punch in MARKED is rejected.
	if _, err := h.ctrl.Punch(context.Background()); !errors.Is(err, ErrNoCandidate) {
		t.Errorf("expected ErrNoCandidate while marked, got %v", err)
	}

	// Frames keep flowing but do not detect while marked.
	calls := h.locator.calls
	h.ticks(6)
	if h.locator.calls != calls {
		t.Error("expected no detection while marked")
	}

	h.clock.Advance(2 * time.Second)
	if got := h.ctrl.Phase(); got != PhaseScanning {
		t.Errorf("expected scanning after reset delay, got %s", got)
	}
	if status := h.ctrl.Status(); status.Name != "" {
		t.Errorf("expected default status, got %+v", status)
	}
}

func TestController_PunchIdleTimerCancelled(t *testing.T) {
	h := readyHarness(t, testSettings())

	if _, err := h.ctrl.Punch(context.Background()); err != nil {
		t.Fatalf("Punch() error = %v", err)
	}
	// Only the reset-after-punch timer remains.
	if got := h.clock.Pending(); got != 1 {
		t.Errorf("expected 1 pending timer, got %d", got)
	}
}

func TestController_PunchWriteFailure(t *testing.T) {
	h := readyHarness(t, testSettings())
	h.backend.InsertError = errors.New("connection refused\nat line 2")

	outcome, err := h.ctrl.Punch(context.Background())
	if err != nil {
		t.Fatalf("Punch() error = %v", err)
	}
	if outcome.Status != database.StatusError {
		t.Errorf("expected error status, got %s", outcome.Status)
	}

	status := h.ctrl.Status()
	if status.Name != "Error: connection refused" || status.NameColor != constants.ColorError {
		t.Errorf("unexpected error status %+v", status)
	}

	h.clock.Advance(2 * time.Second)
	if got := h.ctrl.Phase(); got != PhaseScanning {
		t.Errorf("expected scanning after error display, got %s", got)
	}
}

func TestController_HungStoreRecovers(t *testing.T) {
	settings := testSettings()
	h := newHarness(settings, 1)
	h.withStore(settings, hangingStore{}, 20*time.Millisecond)

	if h.tickUntil(PhaseReady, 20) < 0 {
		t.Fatal("never reached ready")
	}
	if got := h.ctrl.Status().ButtonText; got != constants.TextPunchIn {
		t.Errorf("expected punch in after timed out lookup, got %q", got)
	}

	done := make(chan database.Outcome, 1)
	go func() {
		outcome, err := h.ctrl.Punch(context.Background())
		if err != nil {
			t.Errorf("Punch() error = %v", err)
		}
		done <- outcome
	}()

	var outcome database.Outcome
	select {
	case outcome = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("punch stuck on a hung store")
	}
	if outcome.Status != database.StatusError {
		t.Errorf("expected error status, got %s", outcome.Status)
	}
	status := h.ctrl.Status()
	if !strings.HasPrefix(status.Name, "Error: ") || status.NameColor != constants.ColorError {
		t.Errorf("unexpected status %+v", status)
	}

	h.clock.Advance(2 * time.Second)
	if got := h.ctrl.Phase(); got != PhaseScanning {
		t.Errorf("expected scanning after error display, got %s", got)
	}
}

func TestController_StaleTimerIgnored(t *testing.T) {
	h := readyHarness(t, testSettings())
	// Stop never wins, so the idle timer still fires later.
	h.clock.ignoreStop = true

	if _, err := h.ctrl.Punch(context.Background()); err != nil {
		t.Fatalf("Punch() error = %v", err)
	}
	h.clock.Advance(2 * time.Second)
	if got := h.ctrl.Phase(); got != PhaseScanning {
		t.Fatalf("expected scanning, got %s", got)
	}

	h.matcher.script = []int{7}
	if h.tickUntil(PhaseVerifying, 20) < 0 {
		t.Fatal("never reached verifying in the next attempt")
	}

	// The idle timer of the previous attempt fires now.
	h.clock.Advance(3 * time.Second)
	if got := h.ctrl.Phase(); got != PhaseVerifying {
		t.Errorf("stale timer reset the new attempt, phase %s", got)
	}
}

func TestController_ResetDuringPunchWrite(t *testing.T) {
	h := newHarness(testSettings(), 1)
	rec := &blockingRecorder{entered: make(chan struct{}), release: make(chan struct{})}
	h.ctrl.deps.Recorder = rec

	if h.tickUntil(PhaseReady, 20) < 0 {
		t.Fatal("never reached ready")
	}

	done := make(chan database.Outcome)
	go func() {
		outcome, _ := h.ctrl.Punch(context.Background())
		done <- outcome
	}()

	<-rec.entered
	if status := h.ctrl.Status(); status.Name != constants.TextRecording {
		t.Errorf("expected recording status during write, got %q", status.Name)
	}
	h.ctrl.Reset()
	close(rec.release)

	outcome := <-done
	if outcome.Status != database.StatusIn {
		t.Errorf("expected outcome returned to caller, got %+v", outcome)
	}
	if got := h.ctrl.Phase(); got != PhaseScanning {
		t.Errorf("expected scanning, got %s", got)
	}
	if status := h.ctrl.Status(); status.Name != "" {
		t.Errorf("outcome leaked into reset session: %+v", status)
	}
	if got := h.clock.Pending(); got != 0 {
		t.Errorf("expected no pending timers, got %d", got)
	}
}

func TestController_PunchIgnoresCallerCancellation(t *testing.T) {
	h := readyHarness(t, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome, err := h.ctrl.Punch(ctx)
	if err != nil {
		t.Fatalf("Punch() error = %v", err)
	}
	if outcome.Status != database.StatusIn {
		t.Errorf("expected write to complete, got %+v", outcome)
	}
}

func TestController_BroadcastsStatusChanges(t *testing.T) {
	h := newHarness(testSettings(), 1)
	ch := h.ctrl.Broadcaster().AddListener()
	defer h.ctrl.Broadcaster().RemoveListener(ch)

	if h.tickUntil(PhaseReady, 20) < 0 {
		t.Fatal("never reached ready")
	}

	var phases []string
	for len(ch) > 0 {
		phases = append(phases, (<-ch).Phase)
	}
	if len(phases) < 2 || phases[0] != "verifying" || phases[len(phases)-1] != "ready" {
		t.Errorf("unexpected broadcast phases %v", phases)
	}
}

func TestController_ConcurrentAccess(t *testing.T) {
	h := newHarness(testSettings(), 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for range 200 {
			h.tick()
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			h.ctrl.Punch(ctx)
			_ = h.ctrl.Status()
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			h.clock.Advance(time.Second)
			if h.ctrl.Phase() == PhaseMarked {
				h.ctrl.Reset()
			}
		}
	}()
	wg.Wait()
}
