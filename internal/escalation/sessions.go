package escalation

import (
	"fmt"
	"sync"
)

// Sessions owns every SessionState and enforces the single-writer invariant:
// all mutation happens inside Locked, under that session's own lock.
// Different sessions proceed fully in parallel.
type Sessions struct {
	mu sync.Mutex
	m  map[string]*sessionEntry

	// RecoverSeq, when set, seeds a session's causal sequence counter the
	// first time the session is seen. In-memory state does not survive a
	// restart while the event store does; without recovery a returning
	// session would reallocate occupied causal slots.
	RecoverSeq func(sessionID string) (uint64, error)
}

type sessionEntry struct {
	mu     sync.Mutex
	st     *SessionState
	seeded bool
}

// NewSessions creates an empty session registry.
func NewSessions() *Sessions {
	return &Sessions{m: make(map[string]*sessionEntry)}
}

// Locked runs fn with exclusive ownership of the session's state, creating
// the session in NORMAL on first use. fn must not retain the pointer.
// A failed sequence recovery returns before fn runs; the next call retries.
func (s *Sessions) Locked(sessionID string, fn func(*SessionState)) error {
	s.mu.Lock()
	e, ok := s.m[sessionID]
	if !ok {
		e = &sessionEntry{st: NewSessionState(sessionID)}
		s.m[sessionID] = e
	}
	rec := s.RecoverSeq
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.seeded {
		if rec != nil {
			seq, err := rec(sessionID)
			if err != nil {
				return fmt.Errorf("recover sequence for session %s: %w", sessionID, err)
			}
			e.st.CausalSeq = seq
		}
		e.seeded = true
	}
	fn(e.st)
	return nil
}

// Snapshot returns a copy of a session's state, or false if the session is
// unknown. For inspection only.
func (s *Sessions) Snapshot(sessionID string) (SessionState, bool) {
	s.mu.Lock()
	e, ok := s.m[sessionID]
	s.mu.Unlock()
	if !ok {
		return SessionState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *e.st
	cp.cautionMarks = append([]cautionMark(nil), e.st.cautionMarks...)
	return cp, true
}

// Len returns the number of tracked sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
