// Package store provides durable session history persistence for the
// conversational memory, as an alternative to the in-process store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Kash6/SchedulingAgent/plugin/intent"
	"github.com/Kash6/SchedulingAgent/plugin/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	event_id TEXT NOT NULL,
	action TEXT NOT NULL,
	attendees TEXT NOT NULL DEFAULT '[]',
	recorded_ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_history_session ON session_history (session_id, recorded_ts);
`

// SQLiteStore implements memory.Store on a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate session store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append implements memory.Store.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, e memory.Entry, depth int) error {
	attendees, err := json.Marshal(e.Attendees)
	if err != nil {
		return fmt.Errorf("failed to marshal attendees: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_history (session_id, event_id, action, attendees, recorded_ts) VALUES (?, ?, ?, ?, ?)`,
		sessionID, e.EventID, string(e.Action), string(attendees), e.RecordedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}

	// Evict beyond the bounded depth.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM session_history
		WHERE session_id = ? AND id NOT IN (
			SELECT id FROM session_history WHERE session_id = ? ORDER BY id DESC LIMIT ?
		)`, sessionID, sessionID, depth)
	if err != nil {
		return fmt.Errorf("failed to evict old entries: %w", err)
	}

	return tx.Commit()
}

// List implements memory.Store, most recent first.
func (s *SQLiteStore) List(ctx context.Context, sessionID string, depth int) ([]memory.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, action, attendees, recorded_ts FROM session_history WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, depth)
	if err != nil {
		return nil, fmt.Errorf("failed to list session history: %w", err)
	}
	defer rows.Close()

	var out []memory.Entry
	for rows.Next() {
		var (
			e         memory.Entry
			action    string
			attendees string
			ts        int64
		)
		if err := rows.Scan(&e.EventID, &action, &attendees, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Action = intent.Action(action)
		e.RecordedAt = time.Unix(ts, 0).UTC()
		if err := json.Unmarshal([]byte(attendees), &e.Attendees); err != nil {
			slog.Warn("corrupt attendees column, skipping", "session_id", sessionID, "error", err)
			e.Attendees = nil
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteExpired implements memory.Store. A session is expired when its
// most recent entry is older than cutoff.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM session_history
		WHERE session_id IN (
			SELECT session_id FROM session_history GROUP BY session_id HAVING MAX(recorded_ts) < ?
		)`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ memory.Store = (*SQLiteStore)(nil)
