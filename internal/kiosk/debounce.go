package kiosk

import "github.com/kozaktomas/punch-kiosk/internal/constants"

// Debouncer turns noisy per-cycle detections into a persistent box and
// decides which cycles run the locator.
type Debouncer struct {
	stabilizationFrames int
	maxMissed           int

	cycle         uint64
	box           FrameBox
	hasBox        bool
	missed        int
	stabilization int
}

// NewDebouncer creates a debouncer.
func NewDebouncer(stabilizationFrames, maxMissed int) *Debouncer {
	return &Debouncer{
		stabilizationFrames: stabilizationFrames,
		maxMissed:           maxMissed,
	}
}

// NextCycle advances the cycle counter and reports whether this cycle
// runs detection in phase p.
func (d *Debouncer) NextCycle(p Phase) bool {
	d.cycle++
	switch p {
	case PhaseScanning:
		return d.cycle%constants.ScanningDetectEvery == 0
	case PhaseVerifying, PhaseReady:
		return d.cycle%constants.VerifyingDetectEvery == 0
	default:
		return false
	}
}

// Observation is the outcome of feeding one sampled cycle to the debouncer.
type Observation struct {
	// Lost means the target has been missing long enough that streak and
	// stabilization were cleared. The last box is still kept.
	Lost bool
	// Reset means the missed-frame limit was reached.
	Reset bool
}

// Observe records the result of a sampled detection cycle.
func (d *Debouncer) Observe(box FrameBox, found bool) Observation {
	if found {
		d.box = box
		d.hasBox = true
		d.missed = 0
		return Observation{}
	}

	d.missed++
	var obs Observation
	if d.missed >= constants.LostAfterMissedFrames {
		d.stabilization = 0
		obs.Lost = true
	}
	if d.missed >= d.maxMissed {
		obs.Reset = true
	}
	return obs
}

// Stabilize counts one cycle of holding the box and reports whether the box
// has already been held for the stabilization period.
func (d *Debouncer) Stabilize() bool {
	if d.stabilization < d.stabilizationFrames {
		d.stabilization++
		return false
	}
	return true
}

// Box returns the last known box.
func (d *Debouncer) Box() (FrameBox, bool) {
	return d.box, d.hasBox
}

// Missed returns the current missed-frame count.
func (d *Debouncer) Missed() int {
	return d.missed
}

// ClearMissed zeroes the missed-frame count.
func (d *Debouncer) ClearMissed() {
	d.missed = 0
}

// ClearBox forgets the last known box.
func (d *Debouncer) ClearBox() {
	d.box = FrameBox{}
	d.hasBox = false
}

// Reset clears the box and every counter except the cycle counter.
func (d *Debouncer) Reset() {
	d.ClearBox()
	d.missed = 0
	d.stabilization = 0
}
