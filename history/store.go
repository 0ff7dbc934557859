// Package history keeps a journal of connection attempts in a local
// SQLite database.
//
// Each row is one attempt: when it started, whether and when it reached
// Connected, when and how it ended, and the last line the client printed.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome describes how an attempt ended.
type Outcome string

const (
	// OutcomeConnecting marks an attempt still waiting out the grace interval.
	OutcomeConnecting Outcome = "connecting"
	// OutcomeConnected marks an attempt that is up.
	OutcomeConnected      Outcome = "connected"
	OutcomeLaunchFailed   Outcome = "launch_failed"
	OutcomeSpawnError     Outcome = "spawn_error"
	OutcomeDisconnected   Outcome = "disconnected"
	OutcomeUnexpectedExit Outcome = "unexpected_exit"
	OutcomeCancelled      Outcome = "cancelled"
)

// ErrUnknownAttempt is returned when updating an attempt that was never started.
var ErrUnknownAttempt = errors.New("unknown attempt")

// Entry is one recorded attempt. Zero times mean the step never happened.
type Entry struct {
	ID          string
	Profile     string
	StartedAt   time.Time
	ConnectedAt time.Time
	EndedAt     time.Time
	Outcome     Outcome
	ExitCode    int
	LastLine    string
}

// Duration returns how long the attempt stayed connected.
func (e Entry) Duration() time.Duration {
	if e.ConnectedAt.IsZero() {
		return 0
	}
	end := e.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(e.ConnectedAt)
}

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
	id           TEXT PRIMARY KEY,
	profile      TEXT NOT NULL,
	started_at   INTEGER NOT NULL,
	connected_at INTEGER,
	ended_at     INTEGER,
	outcome      TEXT NOT NULL,
	exit_code    INTEGER NOT NULL DEFAULT -1,
	last_line    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS attempts_started ON attempts(started_at);
`

// Store is the attempt journal.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// One writer; the recorder and CLI never need more.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Start records a new attempt.
func (s *Store) Start(ctx context.Context, id, profile string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, profile, started_at, outcome) VALUES (?, ?, ?, ?)`,
		id, profile, at.UnixMilli(), string(OutcomeConnecting))
	if err != nil {
		return fmt.Errorf("failed to record attempt %s: %w", id, err)
	}
	return nil
}

// MarkConnected records that the attempt passed the grace interval.
func (s *Store) MarkConnected(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, id,
		`UPDATE attempts SET connected_at = ?, outcome = ? WHERE id = ?`,
		at.UnixMilli(), string(OutcomeConnected), id)
}

// Finish records how the attempt ended.
func (s *Store) Finish(ctx context.Context, id string, outcome Outcome, exitCode int, lastLine string, at time.Time) error {
	return s.update(ctx, id,
		`UPDATE attempts SET ended_at = ?, outcome = ?, exit_code = ?, last_line = ? WHERE id = ?`,
		at.UnixMilli(), string(outcome), exitCode, lastLine, id)
}

func (s *Store) update(ctx context.Context, id, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update attempt %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("attempt %s: %w", id, ErrUnknownAttempt)
	}
	return nil
}

// List returns up to limit attempts, newest first. A limit of zero or
// less returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, profile, started_at, connected_at, ended_at, outcome, exit_code, last_line
		FROM attempts ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                Entry
			started          int64
			connected, ended sql.NullInt64
			outcome          string
		)
		if err := rows.Scan(&e.ID, &e.Profile, &started, &connected, &ended, &outcome, &e.ExitCode, &e.LastLine); err != nil {
			return nil, fmt.Errorf("failed to read attempt: %w", err)
		}
		e.StartedAt = time.UnixMilli(started)
		if connected.Valid {
			e.ConnectedAt = time.UnixMilli(connected.Int64)
		}
		if ended.Valid {
			e.EndedAt = time.UnixMilli(ended.Int64)
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes all but the newest keep attempts and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM attempts WHERE id NOT IN (
			SELECT id FROM attempts ORDER BY started_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

// Abandon closes out attempts left open by a previous run that did not
// shut down cleanly.
func (s *Store) Abandon(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET ended_at = ?, outcome = ? WHERE ended_at IS NULL`,
		at.UnixMilli(), string(OutcomeUnexpectedExit))
	if err != nil {
		return 0, fmt.Errorf("failed to close stale attempts: %w", err)
	}
	return res.RowsAffected()
}
