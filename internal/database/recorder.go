package database

import (
	"context"
	"log"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kozaktomas/punch-kiosk/internal/constants"
)

// Outcome is what the kiosk shows after a punch.
type Outcome struct {
	Message string
	Color   string
	Status  Status
	At      time.Time
	Err     error
}

// DefaultTimeout bounds every attendance store call of a Recorder.
const DefaultTimeout = 5 * time.Second

// Recorder toggles attendance for an identity. Its methods never fail: lookup
// errors fall back to StatusOut and write errors become an error Outcome.
// Every store call runs under the recorder timeout.
type Recorder struct {
	store    AttendanceStore
	deviceID int
	timeout  time.Duration
	now      func() time.Time
	upper    cases.Caser
}

// NewRecorder creates a recorder that stamps rows with deviceID.
func NewRecorder(store AttendanceStore, deviceID int) *Recorder {
	return &Recorder{
		store:    store,
		deviceID: deviceID,
		timeout:  DefaultTimeout,
		now:      time.Now,
		upper:    cases.Upper(language.English),
	}
}

// SetClock replaces the time source (tests).
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
}

// SetTimeout changes the per-call deadline. Zero or less disables it.
func (r *Recorder) SetTimeout(d time.Duration) {
	r.timeout = d
}

func (r *Recorder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// dayBounds returns local midnight of t and of the following day.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// LastStatus returns the status of the latest punch today, StatusOut if there
// is none or the lookup fails.
func (r *Recorder) LastStatus(ctx context.Context, id int) Status {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	status, err := r.lastStatus(ctx, id, r.now())
	if err != nil {
		log.Printf("attendance: status lookup for %d failed: %v", id, err)
		return StatusOut
	}
	return status
}

func (r *Recorder) lastStatus(ctx context.Context, id int, at time.Time) (Status, error) {
	from, to := dayBounds(at)
	records, err := r.store.ListAttendance(ctx, id, from, to)
	if err != nil {
		return StatusOut, err
	}
	if len(records) == 0 {
		return StatusOut, nil
	}
	return records[len(records)-1].Status, nil
}

// Today returns today's records of an identity.
func (r *Recorder) Today(ctx context.Context, id int) ([]AttendanceRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	from, to := dayBounds(r.now())
	return r.store.ListAttendance(ctx, id, from, to)
}

// Mark records the opposite of the identity's last status today.
func (r *Recorder) Mark(ctx context.Context, id int, name string) Outcome {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	at := r.now()

	last, err := r.lastStatus(ctx, id, at)
	if err != nil {
		log.Printf("attendance: status lookup for %d failed: %v", id, err)
	}
	next := last.Next()

	rec := AttendanceRecord{
		EmpID:     id,
		Name:      name,
		Status:    next,
		Timestamp: at,
		DeviceID:  r.deviceID,
	}
	if err := r.store.InsertAttendance(ctx, rec); err != nil {
		log.Printf("attendance: failed to mark %d %s: %v", id, next, err)
		return Outcome{
			Message: "Error: " + firstLine(err.Error()),
			Color:   constants.ColorError,
			Status:  StatusError,
			At:      at,
			Err:     err,
		}
	}

	color := constants.ColorMarkedIn
	if next == StatusOut {
		color = constants.ColorMarkedOut
	}
	return Outcome{
		Message: "MARKED " + r.upper.String(string(next)),
		Color:   color,
		Status:  next,
		At:      at,
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
