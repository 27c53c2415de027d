package database

import (
	"context"
	"time"
)

// IdentityReader provides read access to enrolled identities
type IdentityReader interface {
	// ListIdentities returns every identity row ordered by id
	ListIdentities(ctx context.Context) ([]Identity, error)
}

// IdentityWriter provides write access for the enroll command
type IdentityWriter interface {
	IdentityReader

	// PendingEnrollments returns identities that have an image but no embedding
	PendingEnrollments(ctx context.Context) ([]PendingEnrollment, error)
	// SaveEmbedding stores the embedding computed for an identity
	SaveEmbedding(ctx context.Context, id int, embedding []float32) error
}

// AttendanceStore persists punches
type AttendanceStore interface {
	// InsertAttendance appends a record to the attendance log
	InsertAttendance(ctx context.Context, rec AttendanceRecord) error
	// ListAttendance returns records of an identity within [from, to) ordered by time
	ListAttendance(ctx context.Context, empID int, from, to time.Time) ([]AttendanceRecord, error)
}

// Backend is a storage engine that serves every repository the kiosk needs.
type Backend interface {
	IdentityWriter
	AttendanceStore

	// Migrate creates or upgrades the schema
	Migrate(ctx context.Context) error
	// Close releases the underlying connection pool
	Close() error
}
