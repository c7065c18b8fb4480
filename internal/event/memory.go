package event

import (
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-process use.
// Appends are idempotent by event id and ordering is enforced per session:
// an event whose causal sequence is not greater than the last stored one for
// its session is rejected rather than silently reordered.
type MemoryStore struct {
	mu      sync.Mutex
	seen    map[string]bool
	bySess  map[string][]Event
	lastSeq map[string]uint64

	// FailNext makes the next n Append calls fail, for retry testing.
	FailNext int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:    make(map[string]bool),
		bySess:  make(map[string][]Event),
		lastSeq: make(map[string]uint64),
	}
}

func (m *MemoryStore) Append(ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNext > 0 {
		m.FailNext--
		return fmt.Errorf("injected append failure")
	}

	if m.seen[ev.EventID] {
		return nil // duplicate delivery, at-least-once no-op
	}
	if last, ok := m.lastSeq[ev.SessionID]; ok && ev.CausalSeq <= last {
		return fmt.Errorf("out-of-order event for session %s: seq %d after %d",
			ev.SessionID, ev.CausalSeq, last)
	}
	m.seen[ev.EventID] = true
	m.lastSeq[ev.SessionID] = ev.CausalSeq
	m.bySess[ev.SessionID] = append(m.bySess[ev.SessionID], ev)
	return nil
}

// LastSeq returns the highest causal sequence stored for a session.
func (m *MemoryStore) LastSeq(sessionID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeq[sessionID], nil
}

func (m *MemoryStore) Session(sessionID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.bySess[sessionID]
	out := make([]Event, len(evs))
	copy(out, evs)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
