// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/punch-kiosk/internal/database"
)

// MockBackend is an in-memory implementation of database.Backend
type MockBackend struct {
	mu         sync.RWMutex
	identities map[int]*database.Identity
	images     map[int]string
	attendance []database.AttendanceRecord
	nextID     int64
	migrated   bool
	closed     bool

	// Error injection
	ListError    error
	PendingError error
	SaveError    error
	InsertError  error
	QueryError   error
	MigrateError error
}

// NewMockBackend creates a new mock backend
func NewMockBackend() *MockBackend {
	return &MockBackend{
		identities: make(map[int]*database.Identity),
		images:     make(map[int]string),
	}
}

// AddIdentity adds an identity row to the mock store
func (m *MockBackend) AddIdentity(row database.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[row.ID] = &row
}

// SetImage attaches an enrollment image to an identity
func (m *MockBackend) SetImage(id int, image string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[id] = image
}

// ListIdentities returns all identities ordered by id
func (m *MockBackend) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]database.Identity, 0, len(m.identities))
	for _, row := range m.identities {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

// PendingEnrollments returns identities with an image and no embedding
func (m *MockBackend) PendingEnrollments(ctx context.Context) ([]database.PendingEnrollment, error) {
	if m.PendingError != nil {
		return nil, m.PendingError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []database.PendingEnrollment
	for id, image := range m.images {
		row, ok := m.identities[id]
		if !ok || row.HasEncoding() || image == "" {
			continue
		}
		pending = append(pending, database.PendingEnrollment{ID: id, Name: row.Name, Image: image})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

// SaveEmbedding stores an embedding for an identity
func (m *MockBackend) SaveEmbedding(ctx context.Context, id int, embedding []float32) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.identities[id]
	if !ok {
		return fmt.Errorf("identity %d not found", id)
	}
	row.Embedding = append([]float32(nil), embedding...)
	return nil
}

// InsertAttendance appends a record to the log
func (m *MockBackend) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	rec.ID = m.nextID
	m.attendance = append(m.attendance, rec)
	return nil
}

// ListAttendance returns records of an identity within [from, to)
func (m *MockBackend) ListAttendance(ctx context.Context, empID int, from, to time.Time) ([]database.AttendanceRecord, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []database.AttendanceRecord
	for _, rec := range m.attendance {
		if rec.EmpID != empID || rec.Timestamp.Before(from) || !rec.Timestamp.Before(to) {
			continue
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })
	return records, nil
}

// Records returns a copy of every attendance record
func (m *MockBackend) Records() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.AttendanceRecord(nil), m.attendance...)
}

// Migrate marks the schema as created
func (m *MockBackend) Migrate(ctx context.Context) error {
	if m.MigrateError != nil {
		return m.MigrateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.migrated = true
	return nil
}

// Migrated reports whether Migrate was called successfully
func (m *MockBackend) Migrated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.migrated
}

// Close marks the backend closed
func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ database.Backend = (*MockBackend)(nil)
