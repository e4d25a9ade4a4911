package db

import (
	"database/sql"
	"fmt"
)

// Migrate creates the client tables. Every statement is idempotent.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	// Durable key/value storage for the session: accessToken, refreshToken, user.
	`CREATE TABLE IF NOT EXISTS credentials (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	// Exam payloads whose submission failed, kept for a later resubmit.
	`CREATE TABLE IF NOT EXISTS exam_drafts (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		status     TEXT NOT NULL CHECK(status IN ('DRAFT','PUBLISHED')),
		payload    TEXT NOT NULL,
		last_error TEXT NOT NULL DEFAULT '',
		saved_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exam_drafts_saved ON exam_drafts(saved_at)`,
}
