// ABOUTME: SQLite-backed session index: a small (session_id, started_at, ended_at, checkpoint_path,
// ABOUTME: analysis_path) catalog backing GET /sessions, grounded on the teacher's auxiliary sqlite index role.
package server

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sessionIndexSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id      TEXT PRIMARY KEY,
	started_at      TEXT NOT NULL,
	ended_at        TEXT,
	checkpoint_path TEXT NOT NULL,
	analysis_path   TEXT
);`

// SessionIndex is a small catalog of every session this engine has started,
// independent of the JSON session/checkpoint file that remains each session's
// source of truth.
type SessionIndex struct {
	db *sql.DB
}

// OpenSessionIndex opens (creating if needed) the sqlite database at path.
func OpenSessionIndex(path string) (*SessionIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session index: %w", err)
	}
	if _, err := db.Exec(sessionIndexSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session index schema: %w", err)
	}
	return &SessionIndex{db: db}, nil
}

// Record inserts or replaces the catalog row for a newly started session.
func (s *SessionIndex) Record(sessionID, checkpointPath string, startedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO sessions (session_id, started_at, checkpoint_path) VALUES (?, ?, ?)`,
		sessionID, startedAt.UTC().Format(time.RFC3339), checkpointPath,
	)
	if err != nil {
		return fmt.Errorf("record session %s: %w", sessionID, err)
	}
	return nil
}

// MarkEnded stamps a session's end time.
func (s *SessionIndex) MarkEnded(sessionID string, endedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
		endedAt.UTC().Format(time.RFC3339), sessionID,
	)
	if err != nil {
		return fmt.Errorf("mark session %s ended: %w", sessionID, err)
	}
	return nil
}

// SetAnalysisPath records where a session's summarizer artifact was written.
func (s *SessionIndex) SetAnalysisPath(sessionID, path string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET analysis_path = ? WHERE session_id = ?`,
		path, sessionID,
	)
	if err != nil {
		return fmt.Errorf("set analysis path for %s: %w", sessionID, err)
	}
	return nil
}

// Get returns the catalog row for one session, with ok=false when the
// session has never been recorded.
func (s *SessionIndex) Get(sessionID string) (SessionIndexRow, bool, error) {
	row := s.db.QueryRow(`
		SELECT session_id, started_at, COALESCE(ended_at, ''), checkpoint_path, COALESCE(analysis_path, '')
		FROM sessions WHERE session_id = ?`, sessionID)
	var r SessionIndexRow
	if err := row.Scan(&r.SessionID, &r.StartedAt, &r.EndedAt, &r.CheckpointPath, &r.AnalysisPath); err != nil {
		if err == sql.ErrNoRows {
			return SessionIndexRow{}, false, nil
		}
		return SessionIndexRow{}, false, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return r, true, nil
}

// SessionIndexRow is one catalog entry.
type SessionIndexRow struct {
	SessionID      string `json:"session_id"`
	StartedAt      string `json:"started_at"`
	EndedAt        string `json:"ended_at,omitempty"`
	CheckpointPath string `json:"checkpoint_path"`
	AnalysisPath   string `json:"analysis_path,omitempty"`
}

// List returns every catalogued session, most recently started first.
func (s *SessionIndex) List() ([]SessionIndexRow, error) {
	rows, err := s.db.Query(`
		SELECT session_id, started_at, COALESCE(ended_at, ''), checkpoint_path, COALESCE(analysis_path, '')
		FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SessionIndexRow
	for rows.Next() {
		var r SessionIndexRow
		if err := rows.Scan(&r.SessionID, &r.StartedAt, &r.EndedAt, &r.CheckpointPath, &r.AnalysisPath); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SessionIndex) Close() error { return s.db.Close() }
