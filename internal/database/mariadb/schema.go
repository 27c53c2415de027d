package mariadb

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS info (
		emp_id          INT PRIMARY KEY,
		name            VARCHAR(255) NOT NULL,
		designation     VARCHAR(255) NOT NULL DEFAULT '',
		encodings       LONGTEXT NULL,
		image           LONGTEXT NULL,
		match_threshold DOUBLE NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id        BIGINT AUTO_INCREMENT PRIMARY KEY,
		emp_id    INT NOT NULL,
		name      VARCHAR(255) NOT NULL,
		status    ENUM('in', 'out') NOT NULL,
		timestamp DATETIME NOT NULL,
		device_id INT NOT NULL,
		INDEX idx_attendance_emp_ts (emp_id, timestamp)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the identity and attendance tables when they are missing.
// Existing deployments already have both tables, so nothing is altered.
func (p *Pool) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
