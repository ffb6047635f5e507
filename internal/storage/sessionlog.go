package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/valter-silva-au/tracks/pkg/models"
)

// SessionLog is the append-only record of every accepted session, kept in
// the raw form it arrived in so it can be replayed against a schema.
type SessionLog interface {
	Append(ctx context.Context, raw models.RawSession) error
	All(ctx context.Context) ([]models.RawSession, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// ErrLogClosed is returned by operations on a closed session log.
var ErrLogClosed = errors.New("session log is closed")

type sqliteSessionLog struct {
	db   *sql.DB
	path string
}

// NewSQLiteSessionLog opens or creates the session log database at path.
func NewSQLiteSessionLog(path string) (SessionLog, error) {
	if path == "" {
		path = "tracks.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("creating session log directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session log %s: %w", path, err)
	}
	// A single connection serialises writers; sqlite allows one at a time.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS sessions (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			fields      TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialising session log %s: %w", path, err)
		}
	}
	return &sqliteSessionLog{db: db, path: path}, nil
}

func (l *sqliteSessionLog) Append(ctx context.Context, raw models.RawSession) error {
	fields, err := json.Marshal(raw.Fields)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", raw.ID, err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO sessions (id, recorded_at, fields) VALUES (?, ?, ?)`,
		raw.ID, raw.RecordedAt.UTC().Format(time.RFC3339Nano), string(fields),
	)
	if err != nil {
		return fmt.Errorf("appending session %s: %w", raw.ID, err)
	}
	return nil
}

func (l *sqliteSessionLog) All(ctx context.Context) ([]models.RawSession, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, recorded_at, fields FROM sessions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("reading session log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.RawSession
	for rows.Next() {
		var (
			raw        models.RawSession
			recordedAt string
			fields     string
		)
		if err := rows.Scan(&raw.ID, &recordedAt, &fields); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if raw.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, fmt.Errorf("session %s: parsing recorded_at: %w", raw.ID, err)
		}
		if err := json.Unmarshal([]byte(fields), &raw.Fields); err != nil {
			return nil, fmt.Errorf("session %s: decoding fields: %w", raw.ID, err)
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading session log: %w", err)
	}
	return out, nil
}

func (l *sqliteSessionLog) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

func (l *sqliteSessionLog) Close() error {
	return l.db.Close()
}

// memorySessionLog keeps the log in memory. It backs tests and runs that
// should leave nothing on disk.
type memorySessionLog struct {
	mu       sync.RWMutex
	sessions []models.RawSession
	closed   bool
}

// NewMemorySessionLog returns an empty in-memory SessionLog.
func NewMemorySessionLog() SessionLog {
	return &memorySessionLog{}
}

func (l *memorySessionLog) Append(ctx context.Context, raw models.RawSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLogClosed
	}
	l.sessions = append(l.sessions, cloneRaw(raw))
	return nil
}

func (l *memorySessionLog) All(ctx context.Context) ([]models.RawSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrLogClosed
	}
	out := make([]models.RawSession, len(l.sessions))
	for i, raw := range l.sessions {
		out[i] = cloneRaw(raw)
	}
	return out, nil
}

func (l *memorySessionLog) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0, ErrLogClosed
	}
	return len(l.sessions), nil
}

func (l *memorySessionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func cloneRaw(raw models.RawSession) models.RawSession {
	fields := make(map[string]string, len(raw.Fields))
	for k, v := range raw.Fields {
		fields[k] = v
	}
	raw.Fields = fields
	return raw
}
