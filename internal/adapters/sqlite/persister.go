// Package sqlite persists symbol batches in SQLite through the pure-Go
// modernc.org/sqlite driver. Symbols are stored one row each, so the database
// can also be inspected with ordinary SQL.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Register modernc SQLite driver

	"github.com/corey/symdex/internal/ports"
)

// Persister implements ports.SymbolPersister on SQLite.
type Persister struct {
	db *sql.DB
}

var _ ports.SymbolPersister = (*Persister)(nil)

// Open opens or creates the database at path. ":memory:" is accepted for
// tests.
func Open(path string) (*Persister, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and ":memory:" is
	// per-connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=1000"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Persister{db: db}, nil
}

// Close closes the database.
func (p *Persister) Close() error {
	return p.db.Close()
}

// SaveBatch replaces the file row and all of its symbols in one transaction.
func (p *Persister) SaveBatch(batch *ports.SymbolBatch) (err error) {
	if batch == nil || batch.FileID == "" {
		return errors.New("nil batch or empty file id")
	}
	diags, err := json.Marshal(batch.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM symbols WHERE file_id = ?", batch.FileID); err != nil {
		return fmt.Errorf("clear symbols: %w", err)
	}
	_, err = tx.Exec(`INSERT INTO files
		(file_id, language, grammar_version, content_hash, revision, has_parse_errors, duration_ms, diagnostics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			language = excluded.language,
			grammar_version = excluded.grammar_version,
			content_hash = excluded.content_hash,
			revision = excluded.revision,
			has_parse_errors = excluded.has_parse_errors,
			duration_ms = excluded.duration_ms,
			diagnostics = excluded.diagnostics`,
		batch.FileID, batch.Language, batch.GrammarVersion, batch.ContentHash,
		int64(batch.Revision), batch.HasParseErrors, batch.ExtractionDurationMs, string(diags))
	if err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO symbols
		(file_id, ord, kind, name, qualified_path, start_line, start_col, end_line, end_col, signature, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range batch.Symbols {
		path, merr := json.Marshal(s.QualifiedPath)
		if merr != nil {
			err = fmt.Errorf("marshal path: %w", merr)
			return err
		}
		if _, err = stmt.Exec(batch.FileID, i, string(s.Kind), s.Name, string(path),
			s.StartLine, s.StartCol, s.EndLine, s.EndCol, s.Signature, string(s.Confidence)); err != nil {
			return fmt.Errorf("insert symbol %s: %w", s.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteFile removes a file and its symbols. Idempotent.
func (p *Persister) DeleteFile(fileID string) error {
	if _, err := p.db.Exec("DELETE FROM files WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete %s: %w", fileID, err)
	}
	return nil
}

// LoadAll returns every batch ordered by file ID, symbols in stored order.
func (p *Persister) LoadAll() ([]*ports.SymbolBatch, error) {
	rows, err := p.db.Query(`SELECT file_id, language, grammar_version, content_hash, revision,
		has_parse_errors, duration_ms, diagnostics FROM files ORDER BY file_id`)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	var out []*ports.SymbolBatch
	byID := make(map[string]*ports.SymbolBatch)
	for rows.Next() {
		var (
			b     ports.SymbolBatch
			rev   int64
			diags string
		)
		if err := rows.Scan(&b.FileID, &b.Language, &b.GrammarVersion, &b.ContentHash, &rev,
			&b.HasParseErrors, &b.ExtractionDurationMs, &diags); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan file: %w", err)
		}
		b.Revision = uint64(rev)
		if err := json.Unmarshal([]byte(diags), &b.Diagnostics); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode diagnostics for %s: %w", b.FileID, err)
		}
		out = append(out, &b)
		byID[b.FileID] = &b
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	srows, err := p.db.Query(`SELECT file_id, kind, name, qualified_path, start_line, start_col,
		end_line, end_col, signature, confidence FROM symbols ORDER BY file_id, ord`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var (
			s         ports.Symbol
			kind      string
			path      string
			signature sql.NullString
			conf      string
		)
		if err := srows.Scan(&s.FileID, &kind, &s.Name, &path, &s.StartLine, &s.StartCol,
			&s.EndLine, &s.EndCol, &signature, &conf); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		if err := json.Unmarshal([]byte(path), &s.QualifiedPath); err != nil {
			return nil, fmt.Errorf("decode path for %s: %w", s.Name, err)
		}
		s.Kind = ports.SymbolKind(kind)
		s.Signature = signature.String
		s.Confidence = ports.Confidence(conf)
		if b, ok := byID[s.FileID]; ok {
			b.Symbols = append(b.Symbols, s)
		}
	}
	return out, srows.Err()
}
