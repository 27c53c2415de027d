package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"slices"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockID keys the advisory lock held while a migration runs.
const migrationLockID = 0x6b696f736b // "kiosk"

type migration struct {
	version string // file name, e.g. 001_initial.sql
	sql     string
}

// loadMigrations reads every .sql file under dir, ordered by name.
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, migration{version: e.Name(), sql: string(body)})
	}
	slices.SortFunc(out, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	return out, nil
}

// pending drops the migrations already recorded in applied.
func pending(all []migration, applied []string) []migration {
	var out []migration
	for _, m := range all {
		if !slices.Contains(applied, m.version) {
			out = append(out, m)
		}
	}
	return out
}

// Migrate brings the schema up to date. Each file runs in its own transaction
// under the advisory lock and is re-checked against the ledger inside it.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	all, err := loadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	applied, err := p.MigrationsApplied(ctx)
	if err != nil {
		return err
	}

	for _, m := range pending(all, applied) {
		ran, err := p.apply(ctx, m)
		if err != nil {
			return err
		}
		if ran {
			log.Printf("postgres: applied migration %s", m.version)
		}
	}
	return nil
}

// apply runs one migration. It reports false when another process applied it
// while this one waited for the lock.
func (p *Pool) apply(ctx context.Context, m migration) (bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction for %s: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return false, fmt.Errorf("lock for %s: %w", m.version, err)
	}

	var done bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.version,
	).Scan(&done)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", m.version, err)
	}
	if done {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return false, fmt.Errorf("execute migration %s: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return false, fmt.Errorf("record migration %s: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", m.version, err)
	}
	return true, nil
}

// MigrationsApplied lists recorded migration versions in order.
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
