package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
    file_id          TEXT PRIMARY KEY,
    language         TEXT NOT NULL,
    grammar_version  TEXT NOT NULL,
    content_hash     TEXT NOT NULL,
    revision         INTEGER NOT NULL,
    has_parse_errors INTEGER NOT NULL,
    duration_ms      INTEGER NOT NULL,
    diagnostics      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS symbols (
    file_id        TEXT NOT NULL REFERENCES files(file_id) ON DELETE CASCADE,
    ord            INTEGER NOT NULL,
    kind           TEXT NOT NULL,
    name           TEXT NOT NULL,
    qualified_path TEXT NOT NULL,
    start_line     INTEGER NOT NULL,
    start_col      INTEGER NOT NULL,
    end_line       INTEGER NOT NULL,
    end_col        INTEGER NOT NULL,
    signature      TEXT,
    confidence     TEXT NOT NULL,
    PRIMARY KEY (file_id, ord)
);

CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
`

func initSchema(db *sql.DB) error {
	var version int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case err == nil:
		if version > schemaVersion {
			return fmt.Errorf("database schema version %d is newer than supported %d", version, schemaVersion)
		}
		if version < schemaVersion {
			if _, err := db.Exec("UPDATE schema_version SET version = ?", schemaVersion); err != nil {
				return fmt.Errorf("updating schema version: %w", err)
			}
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		// Table exists but is empty.
	default:
		// Table doesn't exist, fresh database.
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("setting schema version: %w", err)
	}
	return nil
}
