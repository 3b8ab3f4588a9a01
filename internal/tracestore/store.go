// Package tracestore records pipeline stage events to SQLite so sessions can
// be inspected after the fact.
package tracestore

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// Event is one recorded stage event.
type Event struct {
	ID         int64
	SessionID  string
	Seq        int
	Stage      string
	Message    string
	Data       map[string]any
	RecordedAt time.Time
}

// Session summarizes the events recorded under one session id.
type Session struct {
	ID     string
	Events int
	First  time.Time
	Last   time.Time
}

// Store is a SQLite-backed event log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record appends an event to its session. Seq is assigned by the store and
// RecordedAt defaults to now.
func (s *Store) Record(ctx context.Context, ev Event) (Event, error) {
	if ev.SessionID == "" {
		return ev, fmt.Errorf("session id is required")
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now()
	}

	var blob []byte
	if len(ev.Data) > 0 {
		packed, err := msgpack.Marshal(ev.Data)
		if err != nil {
			return ev, fmt.Errorf("failed to encode event data: %w", err)
		}
		blob = packed
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO stage_events (session_id, seq, stage, message, data, recorded_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?
		FROM stage_events WHERE session_id = ?
		RETURNING id, seq`,
		ev.SessionID, ev.Stage, ev.Message, blob, ev.RecordedAt.UnixNano(), ev.SessionID)
	if err := row.Scan(&ev.ID, &ev.Seq); err != nil {
		return ev, fmt.Errorf("failed to record event: %w", err)
	}
	return ev, nil
}

// Events returns the events of a session in recording order.
func (s *Store) Events(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, stage, message, data, recorded_at
		FROM stage_events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev   Event
			blob []byte
			at   int64
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Seq, &ev.Stage, &ev.Message, &blob, &at); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.RecordedAt = time.Unix(0, at)
		if len(blob) > 0 {
			data, err := decodeData(blob)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", ev.ID, err)
			}
			ev.Data = data
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Sessions lists recorded sessions, most recent first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), MIN(recorded_at), MAX(recorded_at)
		FROM stage_events GROUP BY session_id ORDER BY MAX(recorded_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			sess        Session
			first, last int64
		)
		if err := rows.Scan(&sess.ID, &sess.Events, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.First = time.Unix(0, first)
		sess.Last = time.Unix(0, last)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// decodeData decodes integers as int64 and floats as float64 regardless of
// their packed width.
func decodeData(blob []byte) (map[string]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(blob))
	dec.UseLooseInterfaceDecoding(true)
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode event data: %w", err)
	}
	return data, nil
}
