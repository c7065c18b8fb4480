// Package risk defines the core domain types shared by the safety gate:
// incoming messages, the three-level decision, and the immutable RiskSignal
// record produced for every evaluated message.
package risk

import (
	"fmt"
	"strings"
	"time"
)

// Decision is the outcome of evaluating a single message.
// Decisions form a total order: CRISIS > CAUTION > SAFE.
type Decision string

const (
	DecisionSafe    Decision = "SAFE"
	DecisionCaution Decision = "CAUTION"
	DecisionCrisis  Decision = "CRISIS"
)

// Severity returns a numeric rank for priority comparison.
// Higher number = more severe decision.
func Severity(d Decision) int {
	switch d {
	case DecisionCrisis:
		return 3
	case DecisionCaution:
		return 2
	case DecisionSafe:
		return 1
	default:
		return 0
	}
}

// MostSevere returns the higher-ranked of two decisions.
func MostSevere(a, b Decision) Decision {
	if Severity(b) > Severity(a) {
		return b
	}
	return a
}

// Message is a single student message entering the gate. Immutable once created.
// StudentID is an opaque identifier; raw PII never enters this core.
type Message struct {
	SessionID  string
	StudentID  string
	Text       string
	ReceivedAt time.Time // carries both wall and monotonic clock readings
	SequenceNo uint64    // monotonically increasing per session
}

// Ref returns a stable reference to this message for signals and events.
func (m Message) Ref() MessageRef {
	return MessageRef{SessionID: m.SessionID, SequenceNo: m.SequenceNo}
}

// Validate rejects malformed messages before any scanning happens.
// A rejected message produces no RiskSignal.
func (m Message) Validate() error {
	if m.SessionID == "" {
		return &InputError{Field: "session_id", Reason: "missing"}
	}
	if m.StudentID == "" {
		return &InputError{Field: "student_id", Reason: "missing"}
	}
	if strings.TrimSpace(m.Text) == "" {
		return &InputError{Field: "text", Reason: "empty"}
	}
	return nil
}

// MessageRef identifies a message without carrying its text.
type MessageRef struct {
	SessionID  string `json:"session_id"`
	SequenceNo uint64 `json:"sequence_no"`
}

// RiskSignal is the audit-grade record of what was decided for one message
// and why. Produced exactly once per message; never mutated afterward.
type RiskSignal struct {
	MessageRef      MessageRef `json:"message_ref"`
	MatchedRules    []string   `json:"matched_rules"` // ordered PatternRule ids, empty if none
	ClassifierScore *float64   `json:"classifier_score,omitempty"`
	Decision        Decision   `json:"decision"`
	DecidedAt       time.Time  `json:"decided_at"`
	RuleSetVersion  string     `json:"rule_set_version"`
}

// InputError marks a message rejected before scanning.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid message: %s %s", e.Field, e.Reason)
}
