package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 2

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS entries (
		position      INTEGER NOT NULL,
		id            TEXT    PRIMARY KEY,
		fact          TEXT    NOT NULL,
		embedding     BLOB    NOT NULL,
		source        TEXT    NOT NULL DEFAULT '',
		domain        TEXT    NOT NULL DEFAULT '',
		created_at    TEXT    NOT NULL,
		access_count  INTEGER NOT NULL DEFAULT 0,
		last_accessed TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_entries_position ON entries(position)`,

	// v2: store-level key/value metadata such as the embedder identity.
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// migrate creates or updates the database schema to the latest version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
