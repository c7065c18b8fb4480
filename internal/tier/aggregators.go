package tier

import (
	"sync"
	"time"

	"github.com/wellmind/crisisgate/internal/escalation"
	"github.com/wellmind/crisisgate/internal/event"
	"github.com/wellmind/crisisgate/internal/risk"
)

// MessageCounts is the Layer-1 per-message aggregator: running decision
// counts across all sessions.
type MessageCounts struct {
	mu     sync.Mutex
	counts map[risk.Decision]int
}

// NewMessageCounts creates the Layer-1 aggregator.
func NewMessageCounts() *MessageCounts {
	return &MessageCounts{counts: make(map[risk.Decision]int)}
}

func (c *MessageCounts) Name() string { return "layer1-message" }

func (c *MessageCounts) Consume(ev event.Event) error {
	// Layer 1 counts per-message records: plain decision events plus crisis
	// events, which stand in for the decision event on the crisis path.
	switch ev.Transition {
	case event.TransitionDecision, escalation.TransitionCrisis, escalation.TransitionCrisisRepeat:
	default:
		return nil
	}
	c.mu.Lock()
	c.counts[ev.Decision]++
	c.mu.Unlock()
	return nil
}

// Count returns the running count for a decision.
func (c *MessageCounts) Count(d risk.Decision) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[d]
}

// SessionView is the Layer-2 per-session aggregator: the latest observed
// transition and decision tallies per session.
type SessionView struct {
	mu       sync.Mutex
	sessions map[string]*SessionSummary
}

// SessionSummary is one session's aggregate view.
type SessionSummary struct {
	LastTransition string
	LastSeq        uint64
	Decisions      map[risk.Decision]int
	CrisisEvents   int
}

// NewSessionView creates the Layer-2 aggregator.
func NewSessionView() *SessionView {
	return &SessionView{sessions: make(map[string]*SessionSummary)}
}

func (v *SessionView) Name() string { return "layer2-session" }

func (v *SessionView) Consume(ev event.Event) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.sessions[ev.SessionID]
	if !ok {
		s = &SessionSummary{Decisions: make(map[risk.Decision]int)}
		v.sessions[ev.SessionID] = s
	}
	s.LastTransition = ev.Transition
	s.LastSeq = ev.CausalSeq
	s.Decisions[ev.Decision]++
	if ev.Decision == risk.DecisionCrisis {
		s.CrisisEvents++
	}
	return nil
}

// Summary returns a copy of a session's aggregate, or false.
func (v *SessionView) Summary(sessionID string) (SessionSummary, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.sessions[sessionID]
	if !ok {
		return SessionSummary{}, false
	}
	cp := SessionSummary{
		LastTransition: s.LastTransition,
		LastSeq:        s.LastSeq,
		Decisions:      make(map[risk.Decision]int, len(s.Decisions)),
		CrisisEvents:   s.CrisisEvents,
	}
	for k, n := range s.Decisions {
		cp.Decisions[k] = n
	}
	return cp, true
}

// Longitudinal is the Layer-3 aggregator: decision counts bucketed by day,
// feeding longer-horizon trend monitoring. Daily buckets are the coarsest
// grain later k-anonymized reporting can build on.
type Longitudinal struct {
	mu      sync.Mutex
	buckets map[string]map[risk.Decision]int // day (UTC, 2006-01-02) -> counts
}

// NewLongitudinal creates the Layer-3 aggregator.
func NewLongitudinal() *Longitudinal {
	return &Longitudinal{buckets: make(map[string]map[risk.Decision]int)}
}

func (l *Longitudinal) Name() string { return "layer3-longitudinal" }

func (l *Longitudinal) Consume(ev event.Event) error {
	day := ev.EmittedAt.UTC().Format("2006-01-02")
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[day]
	if !ok {
		b = make(map[risk.Decision]int)
		l.buckets[day] = b
	}
	b[ev.Decision]++
	return nil
}

// Day returns the decision counts for one UTC day.
func (l *Longitudinal) Day(t time.Time) map[risk.Decision]int {
	day := t.UTC().Format("2006-01-02")
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[risk.Decision]int)
	for k, n := range l.buckets[day] {
		out[k] = n
	}
	return out
}
