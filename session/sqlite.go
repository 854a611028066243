package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/agentpipe/core"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SessionStore backed by a local SQLite database. Session
// state lives in the sessions table; events are appended to session_events in
// emission order and reassembled on load. Suitable for single-process
// deployments that need sessions to survive restarts.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at path and bootstraps the
// schema. Pass ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The sqlite driver serializes access per connection; a single
	// connection avoids table-lock errors under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL DEFAULT '{}',
			created INTEGER NOT NULL,
			updated INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS session_events (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_session_events_session_id ON session_events (session_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Create inserts a fresh session row, replacing any existing one with the
// same id.
func (s *SQLiteStore) Create(id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := core.NewSession(id)

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO sessions (id, state, created, updated) VALUES (?, '{}', ?, ?)`,
		id, sess.Created.Unix(), sess.Updated.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if _, err := s.db.Exec(`DELETE FROM session_events WHERE session_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to clear session events: %w", err)
	}

	return sess, nil
}

// Get loads a session and its full event history, creating the session lazily
// when it does not exist yet.
func (s *SQLiteStore) Get(id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getLocked(id)
}

func (s *SQLiteStore) getLocked(id string) (*core.Session, error) {
	var stateJSON string
	err := s.db.QueryRow(`SELECT state FROM sessions WHERE id = ?`, id).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		sess := core.NewSession(id)
		_, err := s.db.Exec(
			`INSERT INTO sessions (id, state, created, updated) VALUES (?, '{}', ?, ?)`,
			id, sess.Created.Unix(), sess.Updated.Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess := core.NewSession(id)

	var state map[string]any
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	sess.ApplyStateDelta(state)

	rows, err := s.db.Query(`SELECT payload FROM session_events WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		var ev core.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		sess.AddEvent(ev)
	}

	return sess, rows.Err()
}

// AppendEvent serializes and stores an event at the next sequence position.
func (s *SQLiteStore) AppendEvent(sessionID string, event core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSessionLocked(sessionID); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO session_events (session_id, seq, payload)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM session_events WHERE session_id = ?), ?)`,
		sessionID, sessionID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	_, err = s.db.Exec(`UPDATE sessions SET updated = strftime('%s','now') WHERE id = ?`, sessionID)
	return err
}

// ApplyDelta merges a key/value delta into the persisted session state.
func (s *SQLiteStore) ApplyDelta(sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSessionLocked(sessionID); err != nil {
		return err
	}

	var stateJSON string
	if err := s.db.QueryRow(`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&stateJSON); err != nil {
		return fmt.Errorf("failed to load session state: %w", err)
	}

	state := map[string]any{}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return fmt.Errorf("failed to decode session state: %w", err)
	}

	for k, v := range delta {
		state[k] = v
	}

	merged, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	_, err = s.db.Exec(
		`UPDATE sessions SET state = ?, updated = strftime('%s','now') WHERE id = ?`,
		string(merged), sessionID,
	)
	return err
}

func (s *SQLiteStore) ensureSessionLocked(sessionID string) error {
	sess := core.NewSession(sessionID)
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, state, created, updated) VALUES (?, '{}', ?, ?)`,
		sessionID, sess.Created.Unix(), sess.Updated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
