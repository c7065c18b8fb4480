package event

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wellmind/crisisgate/internal/risk"
)

func ev(id, session string, seq uint64, d risk.Decision) Event {
	return Event{
		EventID:    id,
		SessionID:  session,
		MessageRef: risk.MessageRef{SessionID: session, SequenceNo: seq},
		Decision:   d,
		Transition: TransitionDecision,
		EmittedAt:  time.Now(),
		CausalSeq:  seq,
	}
}

func TestMemoryStore_DuplicateAppendIsNoop(t *testing.T) {
	m := NewMemoryStore()
	e := ev("e1", "s1", 1, risk.DecisionSafe)
	if err := m.Append(e); err != nil {
		t.Fatal(err)
	}
	if err := m.Append(e); err != nil {
		t.Fatalf("duplicate append must be a no-op, got %v", err)
	}
	evs, _ := m.Session("s1")
	if len(evs) != 1 {
		t.Errorf("stored = %d, want 1", len(evs))
	}
}

func TestMemoryStore_RejectsOutOfOrder(t *testing.T) {
	m := NewMemoryStore()
	if err := m.Append(ev("e2", "s1", 2, risk.DecisionSafe)); err != nil {
		t.Fatal(err)
	}
	if err := m.Append(ev("e1", "s1", 1, risk.DecisionSafe)); err == nil {
		t.Fatal("expected out-of-order rejection")
	}
}

func TestMemoryStore_SessionsIndependent(t *testing.T) {
	m := NewMemoryStore()
	if err := m.Append(ev("a1", "a", 5, risk.DecisionSafe)); err != nil {
		t.Fatal(err)
	}
	// Lower sequence on a different session is fine.
	if err := m.Append(ev("b1", "b", 1, risk.DecisionSafe)); err != nil {
		t.Fatal(err)
	}
}

func TestPublisher_RetriesThenSucceeds(t *testing.T) {
	m := NewMemoryStore()
	m.FailNext = 3
	p := NewPublisher(m, RetryPolicy{
		MaxAttempts:   5,
		BackoffBase:   time.Millisecond,
		BackoffCap:    2 * time.Millisecond,
		FatalDeadline: time.Second,
	}, zap.NewNop(), func(Event, error) {
		t.Fatal("alarm must not fire on recovered publish")
	})

	if err := p.Publish(context.Background(), ev("e1", "s1", 1, risk.DecisionCaution)); err != nil {
		t.Fatalf("publish after retries: %v", err)
	}
	evs, _ := m.Session("s1")
	if len(evs) != 1 {
		t.Errorf("stored = %d", len(evs))
	}
}

func TestPublisher_CrisisDeadlineRaisesAlarm(t *testing.T) {
	m := NewMemoryStore()
	m.FailNext = 1000
	alarmed := false
	p := NewPublisher(m, RetryPolicy{
		MaxAttempts:   3,
		BackoffBase:   time.Millisecond,
		BackoffCap:    2 * time.Millisecond,
		FatalDeadline: 50 * time.Millisecond,
	}, zap.NewNop(), func(Event, error) { alarmed = true })

	err := p.Publish(context.Background(), ev("e1", "s1", 1, risk.DecisionCrisis))
	if err == nil {
		t.Fatal("expected fatal error")
	}
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("error type = %T, want *FatalError", err)
	}
	if !alarmed {
		t.Error("fatal alarm must fire for a dropped crisis event")
	}
}

func TestPublisher_NonCrisisDeadlineIsTransient(t *testing.T) {
	m := NewMemoryStore()
	m.FailNext = 1000
	p := NewPublisher(m, RetryPolicy{
		MaxAttempts:   2,
		BackoffBase:   time.Millisecond,
		BackoffCap:    2 * time.Millisecond,
		FatalDeadline: 20 * time.Millisecond,
	}, zap.NewNop(), func(Event, error) {
		t.Fatal("alarm must only fire for crisis events")
	})

	err := p.Publish(context.Background(), ev("e1", "s1", 1, risk.DecisionSafe))
	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("error = %v, want *TransientError", err)
	}
}

func TestSQLiteStore_AppendAndRead(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	for seq := uint64(1); seq <= 3; seq++ {
		d := risk.DecisionSafe
		if seq == 2 {
			d = risk.DecisionCrisis
		}
		if err := store.Append(ev(string(rune('a'+seq)), "s1", seq, d)); err != nil {
			t.Fatal(err)
		}
	}

	evs, err := store.Session("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 3 {
		t.Fatalf("stored = %d, want 3", len(evs))
	}
	for i := 1; i < len(evs); i++ {
		if evs[i].CausalSeq <= evs[i-1].CausalSeq {
			t.Error("events not in causal order")
		}
	}
}

func TestSQLiteStore_DuplicateEventIDIgnored(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	e := ev("dup", "s1", 1, risk.DecisionCrisis)
	if err := store.Append(e); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(e); err != nil {
		t.Fatalf("duplicate append must be a no-op, got %v", err)
	}
	evs, _ := store.Session("s1")
	if len(evs) != 1 {
		t.Errorf("stored = %d, want 1", len(evs))
	}
}

func TestSQLiteStore_RejectsSeqSlotReuse(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Append(ev("old-run", "s1", 1, risk.DecisionSafe)); err != nil {
		t.Fatal(err)
	}
	// A different event landing on the same slot means a counter desync;
	// acking it would lose the event without any retry or alarm.
	if err := store.Append(ev("new-run", "s1", 1, risk.DecisionCrisis)); err == nil {
		t.Fatal("slot reuse by a different event must error, not ack")
	}
	evs, _ := store.Session("s1")
	if len(evs) != 1 || evs[0].EventID != "old-run" {
		t.Errorf("stored = %v", evs)
	}
}

func TestSQLiteStore_LastSeq(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if last, err := store.LastSeq("s1"); err != nil || last != 0 {
		t.Fatalf("empty store: last = %d, err = %v", last, err)
	}
	store.Append(ev("e1", "s1", 1, risk.DecisionSafe))
	store.Append(ev("e2", "s1", 2, risk.DecisionCaution))
	store.Append(ev("f1", "s2", 7, risk.DecisionSafe))

	if last, _ := store.LastSeq("s1"); last != 2 {
		t.Errorf("s1 last = %d, want 2", last)
	}
	if last, _ := store.LastSeq("s2"); last != 7 {
		t.Errorf("s2 last = %d, want 7", last)
	}
}

func TestMemoryStore_LastSeq(t *testing.T) {
	m := NewMemoryStore()
	if last, _ := m.LastSeq("s1"); last != 0 {
		t.Fatalf("empty store: last = %d", last)
	}
	m.Append(ev("e1", "s1", 3, risk.DecisionSafe))
	if last, _ := m.LastSeq("s1"); last != 3 {
		t.Errorf("last = %d, want 3", last)
	}
}

func TestSQLiteStore_CountByDecision(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	store.Append(ev("e1", "s1", 1, risk.DecisionSafe))
	store.Append(ev("e2", "s1", 2, risk.DecisionCrisis))
	store.Append(ev("e3", "s2", 1, risk.DecisionCrisis))

	counts, err := store.CountByDecision(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if counts[risk.DecisionCrisis] != 2 || counts[risk.DecisionSafe] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
