// Package event defines the escalation event stream: durable, at-least-once
// publication with per-session ordering and consumer-side idempotence keyed
// by event id.
package event

import (
	"fmt"
	"time"

	"github.com/wellmind/crisisgate/internal/risk"
)

// Event is one append-only escalation event. Once published it is never
// retracted; corrections are new events referencing the original through
// Supersedes.
type Event struct {
	EventID    string          `json:"event_id"`
	SessionID  string          `json:"session_id"`
	MessageRef risk.MessageRef `json:"message_ref"`
	Decision   risk.Decision   `json:"decision"`
	// Transition is the state machine transition label that produced this
	// event, or "decision" for plain per-message decision events.
	Transition string    `json:"triggered_transition"`
	EmittedAt  time.Time `json:"emitted_at"`
	CausalSeq  uint64    `json:"causal_sequence_no"`
	Supersedes string    `json:"supersedes,omitempty"`
}

// TransitionDecision labels plain per-message decision events that carry no
// state change.
const TransitionDecision = "decision"

// Store durably appends events. Append must be idempotent by EventID:
// appending an already-stored id is a no-op, which makes at-least-once
// publication safe.
type Store interface {
	// Append persists the event. Duplicate EventIDs are silently ignored;
	// a different event reusing an occupied (session, causal_seq) slot is
	// an error, never a silent drop.
	Append(ev Event) error

	// Session returns all stored events for a session in causal order.
	Session(sessionID string) ([]Event, error)

	// LastSeq returns the highest causal sequence stored for a session,
	// zero for an unknown session. Seeds per-session counters on restart.
	LastSeq(sessionID string) (uint64, error)

	// Close releases the store.
	Close() error
}

// TransientError marks a publish failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("publish transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a CRISIS event whose publish deadline was exceeded. This
// is the one failure that must never pass silently.
type FatalError struct {
	Event Event
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("publish fatal failure for crisis event %s: %v", e.Event.EventID, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
