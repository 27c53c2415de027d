package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/punch-kiosk/internal/database"
)

// ListIdentities returns every identity ordered by id.
func (p *Pool) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	query := `
		SELECT emp_id, name, designation, embedding::text, match_threshold
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
			embedding sql.NullString
			threshold sql.NullFloat64
		)
		if err := rows.Scan(&row.ID, &row.Name, &row.Designation, &embedding, &threshold); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if embedding.Valid {
			var vec pgvector.Vector
			if err := vec.Scan(embedding.String); err != nil {
				return nil, fmt.Errorf("parse embedding of %d: %w", row.ID, err)
			}
			row.Embedding = vec.Slice()
		}
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

// PendingEnrollments returns identities that have an image but no embedding.
func (p *Pool) PendingEnrollments(ctx context.Context) ([]database.PendingEnrollment, error) {
	query := `
		SELECT emp_id, name, image
		FROM info
		WHERE image IS NOT NULL AND image <> '' AND embedding IS NULL
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

// SaveEmbedding stores the embedding in the vector column.
func (p *Pool) SaveEmbedding(ctx context.Context, id int, embedding []float32) error {
	query := `UPDATE info SET embedding = $1, updated_at = NOW() WHERE emp_id = $2`
	res, err := p.db.ExecContext(ctx, query, pgvector.NewVector(embedding), id)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("identity %d not found", id)
	}
	return nil
}
