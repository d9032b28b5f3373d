package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// MemoryPath keeps the journal inside the process.
const MemoryPath = ":memory:"

const schema = `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		sessionId TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		createdAt REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS entries_session ON entries(sessionId, createdAt);
`

// Store appends and reads journal entries.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path. MemoryPath or an
// empty path gives a private in-memory journal.
func Open(path string) (*Store, error) {
	if path == "" {
		path = MemoryPath
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// Every pooled connection to :memory: would be a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if path != MemoryPath {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable wal: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores e, filling in ID and CreatedAt when unset.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, sessionId, kind, message, detail, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.Kind, e.Message, e.Detail, unixFromTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries for a session, newest first.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sessionId, kind, message, detail, createdAt
		FROM entries
		WHERE sessionId = ?
		ORDER BY createdAt DESC, rowid DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt float64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Message, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CreatedAt = timeFromUnix(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByKind returns how many entries of each kind a session has.
func (s *Store) CountByKind(ctx context.Context, sessionID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM entries WHERE sessionId = ? GROUP BY kind
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
