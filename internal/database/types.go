package database

import (
	"time"
)

// Status is the attendance direction of a single punch.
type Status string

const (
	StatusIn  Status = "in"
	StatusOut Status = "out"
	// StatusError is reported by Recorder.Mark when nothing was written.
	StatusError Status = "error"
)

// Next returns the status a new punch records after s.
func (s Status) Next() Status {
	if s == StatusIn {
		return StatusOut
	}
	return StatusIn
}

// Identity is a raw row of the identity table before its encoding is decoded.
type Identity struct {
	ID          int
	Name        string
	Designation string
	Encoding    string    // base64 encoding as written by the enroll command (MariaDB)
	Embedding   []float32 // native vector column (PostgreSQL), preferred over Encoding
	Threshold   *float64  // optional per-row acceptance threshold
}

// HasEncoding reports whether the row carries any stored embedding.
func (i *Identity) HasEncoding() bool {
	return len(i.Embedding) > 0 || i.Encoding != ""
}

// PendingEnrollment is an identity with a reference image but no embedding yet.
type PendingEnrollment struct {
	ID    int
	Name  string
	Image string // data URL or raw base64
}

// AttendanceRecord is a single row of the attendance log.
type AttendanceRecord struct {
	ID        int64     `json:"id"`
	EmpID     int       `json:"emp_id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  int       `json:"device_id"`
}
