// Package audit writes the append-only JSONL trail required for legal
// defensibility: every RiskSignal and every EscalationEvent, including
// SAFE-path ones. Records are never rewritten; corrections appear as new
// records.
package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/wellmind/crisisgate/internal/event"
	"github.com/wellmind/crisisgate/internal/risk"
)

// Record is one audit line. Kind distinguishes signal and event records.
type Record struct {
	Timestamp string           `json:"timestamp"`
	Kind      string           `json:"kind"` // "risk_signal" or "escalation_event"
	Signal    *risk.RiskSignal `json:"signal,omitempty"`
	Event     *event.Event     `json:"event,omitempty"`
}

// Writer appends audit records to a JSONL file. Safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// New opens (appending) the audit file.
func New(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &Writer{file: file}, nil
}

// Signal records a decided RiskSignal.
func (w *Writer) Signal(sig risk.RiskSignal) error {
	return w.write(Record{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Kind:      "risk_signal",
		Signal:    &sig,
	})
}

// Event records a published EscalationEvent.
func (w *Writer) Event(ev event.Event) error {
	return w.write(Record{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Kind:      "escalation_event",
		Event:     &ev,
	})
}

func (w *Writer) write(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.file.Write(data)
	return err
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
