// ABOUTME: SQLite persistence for audit entries using modernc.org/sqlite
// ABOUTME: Automatic schema creation, WAL mode, append-and-list access only

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists audit entries. The table is append-only from the
// gateway's point of view; entries are never updated or deleted here.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the audit database at the given path.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// createSchema creates the audit table if it doesn't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			ts INTEGER NOT NULL,
			request_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			tenant TEXT NOT NULL,
			operation TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL,
			status INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_entries_ts
			ON audit_entries(ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert appends one entry. Timestamps are stored as epoch nanoseconds
// so ORDER BY ts is numeric; string timestamp formats with a variable
// fraction width sort wrong at sub-second resolution.
func (s *SQLiteStore) Insert(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, ts, request_id, subject, tenant, operation, outcome, reason, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.UnixNano(), e.RequestID,
		e.Subject, e.Tenant, e.Operation, string(e.Outcome), e.Reason, e.Status,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// ListRecent returns the most recent entries, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, request_id, subject, tenant, operation, outcome, reason, status
		FROM audit_entries
		ORDER BY ts DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var outcome string
		if err := rows.Scan(&e.ID, &ts, &e.RequestID, &e.Subject, &e.Tenant, &e.Operation, &outcome, &e.Reason, &e.Status); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Outcome = Outcome(outcome)
		e.Time = time.Unix(0, ts).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
