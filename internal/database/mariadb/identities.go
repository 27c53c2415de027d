package mariadb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/punch-kiosk/internal/database"
	"github.com/kozaktomas/punch-kiosk/internal/gallery"
)

// ListIdentities returns every row of the info table ordered by id.
func (p *Pool) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	query := `
		SELECT emp_id, name, designation, encodings, match_threshold
		FROM info
		ORDER BY emp_id
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		var (
			row       database.Identity
			encoding  sql.NullString
			threshold sql.NullFloat64
		)
		if err := rows.Scan(&row.ID, &row.Name, &row.Designation, &encoding, &threshold); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		row.Encoding = encoding.String
		if threshold.Valid {
			t := threshold.Float64
			row.Threshold = &t
		}
		identities = append(identities, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// PendingEnrollments returns identities with an image and an empty encoding.
func (p *Pool) PendingEnrollments(ctx context.Context) ([]database.PendingEnrollment, error) {
	query := `
		SELECT emp_id, name, image
		FROM info
		WHERE image IS NOT NULL AND image <> ''
		  AND (encodings IS NULL OR encodings = '')
		ORDER BY emp_id
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query pending enrollments: %w", err)
	}
	defer rows.Close()

	var pending []database.PendingEnrollment
	for rows.Next() {
		var e database.PendingEnrollment
		if err := rows.Scan(&e.ID, &e.Name, &e.Image); err != nil {
			return nil, fmt.Errorf("scan pending enrollment: %w", err)
		}
		pending = append(pending, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending enrollments: %w", err)
	}
	return pending, nil
}

// SaveEmbedding stores the embedding as base64 little-endian float64.
func (p *Pool) SaveEmbedding(ctx context.Context, id int, embedding []float32) error {
	// Verify the row exists first (MySQL RowsAffected returns 0 when data is unchanged)
	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT 1 FROM info WHERE emp_id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("identity %d not found", id)
	}

	query := `UPDATE info SET encodings = ? WHERE emp_id = ?`
	if _, err := p.db.ExecContext(ctx, query, gallery.EncodeEmbedding(embedding), id); err != nil {
		return fmt.Errorf("update encoding: %w", err)
	}
	return nil
}
