package mariadb

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/punch-kiosk/internal/database"
)

// InsertAttendance appends a punch to the attendance table.
func (p *Pool) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) error {
	query := `
		INSERT INTO attendance (emp_id, name, status, timestamp, device_id)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := p.db.ExecContext(ctx, query, rec.EmpID, rec.Name, string(rec.Status), rec.Timestamp, rec.DeviceID); err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// ListAttendance returns punches of an identity within [from, to) oldest first.
func (p *Pool) ListAttendance(ctx context.Context, empID int, from, to time.Time) ([]database.AttendanceRecord, error) {
	query := `
		SELECT id, emp_id, name, status, timestamp, device_id
		FROM attendance
		WHERE emp_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, id
	`

	rows, err := p.db.QueryContext(ctx, query, empID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var (
			rec    database.AttendanceRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.EmpID, &rec.Name, &status, &rec.Timestamp, &rec.DeviceID); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.Status = database.Status(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}
