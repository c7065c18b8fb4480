// Package escalation tracks per-session risk state: repeated cautions,
// active crisis handling, and post-crisis cooldown. The transition logic is
// a pure function of (current state, decision, elapsed time); the only
// mutable state is one SessionState record per session, single-writer.
package escalation

import (
	"time"

	"github.com/wellmind/crisisgate/internal/risk"
)

// State is a session's escalation phase.
type State string

const (
	StateNormal       State = "NORMAL"
	StateWatch        State = "WATCH"
	StateCrisisActive State = "CRISIS_ACTIVE"
	StateCooldown     State = "COOLDOWN"
)

// Transition labels carried on emitted events.
const (
	TransitionCrisis          = "crisis"
	TransitionCrisisRepeat    = "crisis-repeat"
	TransitionCautionWatch    = "caution-threshold"
	TransitionSafeDecay       = "safe-streak-decay"
	TransitionHandled         = "handled"
	TransitionCooldownElapsed = "cooldown-elapsed"
)

// Config holds the required escalation parameters. None of these have
// meaningful universal constants; deployments must choose them.
type Config struct {
	// CautionCount cautions within the window move NORMAL to WATCH.
	CautionCount int
	// CautionWindow is the number of most recent messages the caution
	// count slides over.
	CautionWindow int
	// CautionSpan is the wall-clock horizon of the window; cautions older
	// than this age out even within the message window.
	CautionSpan time.Duration
	// SafeStreak consecutive SAFE decisions decay WATCH back to NORMAL.
	SafeStreak int
	// Cooldown is how long after a handled crisis duplicate notifications
	// stay suppressed.
	Cooldown time.Duration
}

// SessionState is the single mutable record per session. Mutated only under
// the session's writer lock.
type SessionState struct {
	SessionID     string
	Current       State
	cautionMarks  []cautionMark
	safeStreak    int
	LastCrisisAt  time.Time // zero until first crisis
	CooldownUntil time.Time // zero unless in cooldown
	CausalSeq     uint64    // strictly increasing per session, one per event
}

type cautionMark struct {
	seq uint64
	at  time.Time
}

// NewSessionState starts a session in NORMAL.
func NewSessionState(sessionID string) *SessionState {
	return &SessionState{SessionID: sessionID, Current: StateNormal}
}

// NextSeq allocates the next causal sequence number for an event.
func (s *SessionState) NextSeq() uint64 {
	s.CausalSeq++
	return s.CausalSeq
}

// CautionCountInWindow reports the live caution count (for inspection).
func (s *SessionState) CautionCountInWindow() int {
	return len(s.cautionMarks)
}

// Transition is one state machine step. Each transition emits exactly one
// escalation event carrying its label.
type Transition struct {
	From  State
	To    State
	Label string
	// Notify marks transitions that should trigger downstream notification.
	// Notification is deduplicated here; detection never is.
	Notify bool
}

// Apply advances the session for one decided message and returns the
// transitions taken, in order. Zero transitions means the state held.
//
// seq is the message's per-session sequence number, used for the sliding
// caution window. The crisis transition is highest priority and reachable
// from every state; while already CRISIS_ACTIVE a repeat crisis emits a
// transition without regressing the state.
func Apply(s *SessionState, d risk.Decision, seq uint64, now time.Time, cfg Config) []Transition {
	var out []Transition

	// Settle elapsed cooldown before the decision applies.
	if s.Current == StateCooldown && !s.CooldownUntil.IsZero() && !now.Before(s.CooldownUntil) {
		out = append(out, s.move(StateNormal, TransitionCooldownElapsed, false))
		s.CooldownUntil = time.Time{}
	}

	if d == risk.DecisionCrisis {
		s.LastCrisisAt = now
		s.safeStreak = 0
		s.cautionMarks = nil
		if s.Current == StateCrisisActive {
			// Re-entrant crisis: new event, no state regression.
			out = append(out, Transition{
				From:   StateCrisisActive,
				To:     StateCrisisActive,
				Label:  TransitionCrisisRepeat,
				Notify: false,
			})
			return out
		}
		notify := true
		if s.Current == StateCooldown {
			// A crisis during cooldown re-activates handling but the
			// duplicate notification stays suppressed.
			notify = false
		}
		out = append(out, s.move(StateCrisisActive, TransitionCrisis, notify))
		s.CooldownUntil = time.Time{}
		return out
	}

	switch d {
	case risk.DecisionCaution:
		s.safeStreak = 0
		s.recordCaution(seq, now, cfg)
		if s.Current == StateNormal && cfg.CautionCount > 0 && len(s.cautionMarks) >= cfg.CautionCount {
			out = append(out, s.move(StateWatch, TransitionCautionWatch, true))
		}
	case risk.DecisionSafe:
		s.safeStreak++
		if s.Current == StateWatch && cfg.SafeStreak > 0 && s.safeStreak >= cfg.SafeStreak {
			out = append(out, s.move(StateNormal, TransitionSafeDecay, false))
			s.cautionMarks = nil
		}
	}
	return out
}

// MarkHandled moves CRISIS_ACTIVE to COOLDOWN once the escalation event has
// been durably published. Publication is the completion condition; human
// response is tracked downstream.
func MarkHandled(s *SessionState, now time.Time, cfg Config) (Transition, bool) {
	if s.Current != StateCrisisActive {
		return Transition{}, false
	}
	s.CooldownUntil = now.Add(cfg.Cooldown)
	return s.move(StateCooldown, TransitionHandled, false), true
}

func (s *SessionState) move(to State, label string, notify bool) Transition {
	t := Transition{From: s.Current, To: to, Label: label, Notify: notify}
	s.Current = to
	return t
}

// recordCaution appends a caution mark and prunes marks that fell out of the
// message-count window or aged past the wall-clock span.
func (s *SessionState) recordCaution(seq uint64, now time.Time, cfg Config) {
	s.cautionMarks = append(s.cautionMarks, cautionMark{seq: seq, at: now})
	kept := s.cautionMarks[:0]
	for _, m := range s.cautionMarks {
		if cfg.CautionWindow > 0 && seq >= uint64(cfg.CautionWindow) && m.seq <= seq-uint64(cfg.CautionWindow) {
			continue
		}
		if cfg.CautionSpan > 0 && now.Sub(m.at) > cfg.CautionSpan {
			continue
		}
		kept = append(kept, m)
	}
	s.cautionMarks = kept
}
