package event

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wellmind/crisisgate/internal/risk"
)

// SQLiteStore is the durable event stream. WAL mode keeps appends cheap;
// the primary key on event_id makes duplicate appends no-ops, which is what
// gives downstream consumers their idempotence guarantee.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the event database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create event db directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open event db: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer, avoids SQLITE_BUSY on appends
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping event db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize event schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS events (
		event_id    TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		message_seq INTEGER NOT NULL,
		decision    TEXT NOT NULL,
		transition  TEXT NOT NULL,
		emitted_at  INTEGER NOT NULL,
		causal_seq  INTEGER NOT NULL,
		supersedes  TEXT,
		payload     TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_events_session_seq
		ON events(session_id, causal_seq);
	CREATE INDEX IF NOT EXISTS idx_events_emitted ON events(emitted_at);
	`
	_, err := s.db.Exec(query)
	return err
}

// Append persists the event. The conflict clause is scoped to event_id
// only, so duplicate delivery of the same event is a no-op while a
// different event reusing a session's causal slot violates the unique
// (session_id, causal_seq) index and errors. That distinction matters: a
// slot conflict means the in-memory counter is behind the store, and the
// publisher must see the failure rather than ack a dropped event.
func (s *SQLiteStore) Append(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.EventID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO events
			(event_id, session_id, message_seq, decision, transition, emitted_at, causal_seq, supersedes, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		ev.EventID, ev.SessionID, ev.MessageRef.SequenceNo, string(ev.Decision),
		ev.Transition, ev.EmittedAt.UnixNano(), ev.CausalSeq, ev.Supersedes, string(payload))
	if err != nil {
		return fmt.Errorf("append event %s: %w", ev.EventID, err)
	}
	return nil
}

// LastSeq returns the highest causal sequence stored for a session, zero
// when the session has no events. Used to seed a session's counter after a
// restart so new events never land on occupied slots.
func (s *SQLiteStore) LastSeq(sessionID string) (uint64, error) {
	var last uint64
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(causal_seq), 0) FROM events WHERE session_id = ?`,
		sessionID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("query last seq for session %s: %w", sessionID, err)
	}
	return last, nil
}

// Session returns all events for a session ordered by causal sequence.
func (s *SQLiteStore) Session(sessionID string) ([]Event, error) {
	rows, err := s.db.Query(`
		SELECT payload FROM events WHERE session_id = ? ORDER BY causal_seq`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode stored event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountByDecision returns event counts per decision since a cutoff, used by
// the longitudinal tier.
func (s *SQLiteStore) CountByDecision(since time.Time) (map[risk.Decision]int, error) {
	rows, err := s.db.Query(`
		SELECT decision, COUNT(*) FROM events WHERE emitted_at >= ? GROUP BY decision`,
		since.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[risk.Decision]int)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, err
		}
		out[risk.Decision(d)] = n
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
