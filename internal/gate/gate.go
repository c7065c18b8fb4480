// Package gate orchestrates the safety pipeline: scan and decide, advance
// the session's escalation state, durably publish events, and only then
// report whether the generation path may run. A crash or slowdown in the
// conversational component can never suppress an alert because nothing
// downstream of publication is waited on.
package gate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wellmind/crisisgate/internal/audit"
	"github.com/wellmind/crisisgate/internal/decision"
	"github.com/wellmind/crisisgate/internal/escalation"
	"github.com/wellmind/crisisgate/internal/event"
	"github.com/wellmind/crisisgate/internal/pattern"
	"github.com/wellmind/crisisgate/internal/risk"
	"github.com/wellmind/crisisgate/internal/tier"
)

// Gate wires the pipeline components. Scanner and decision engine are pure
// and run with full parallelism; per-session state and publication are
// serialized under the session's writer lock.
type Gate struct {
	lib      *pattern.Library
	engine   *decision.Engine
	sessions *escalation.Sessions
	pub      *event.Publisher
	fanout   *tier.Fanout
	audit    *audit.Writer
	cfg      escalation.Config
	log      *zap.Logger
}

// New assembles a gate. fanout and auditWriter may be nil in tests.
func New(lib *pattern.Library, engine *decision.Engine, pub *event.Publisher,
	fanout *tier.Fanout, auditWriter *audit.Writer, cfg escalation.Config, log *zap.Logger) *Gate {
	sessions := escalation.NewSessions()
	// A session returning after a restart resumes its causal numbering
	// from the durable stream instead of colliding with stored slots.
	sessions.RecoverSeq = pub.Store().LastSeq
	return &Gate{
		lib:      lib,
		engine:   engine,
		sessions: sessions,
		pub:      pub,
		fanout:   fanout,
		audit:    auditWriter,
		cfg:      cfg,
		log:      log,
	}
}

// Outcome is the result of gating one message.
type Outcome struct {
	Signal risk.RiskSignal
	State  escalation.State
	Events []event.Event
	// GenerationAllowed is false when the message must bypass the
	// generation path entirely (crisis handling owns the response).
	GenerationAllowed bool
}

// Sessions exposes the session registry for inspection.
func (g *Gate) Sessions() *escalation.Sessions { return g.sessions }

// Process runs one message through the full safety path. Once scanning has
// started the path runs to completion regardless of caller cancellation: a
// half-evaluated safety decision is never acceptable.
//
// A CRISIS decision has its escalation event durably published before
// Process returns, so no generation-path side effect can precede it.
func (g *Gate) Process(ctx context.Context, msg risk.Message) (Outcome, error) {
	if err := msg.Validate(); err != nil {
		return Outcome{}, err
	}

	// Detach from caller cancellation for the rest of the safety path.
	ctx = context.WithoutCancel(ctx)

	sig := g.engine.Evaluate(ctx, msg, g.lib.Current())
	if g.audit != nil {
		if err := g.audit.Signal(sig); err != nil {
			g.log.Error("audit signal write failed", zap.Error(err))
		}
	}

	var (
		out        Outcome
		publishErr error
	)
	out.Signal = sig

	lockErr := g.sessions.Locked(msg.SessionID, func(st *escalation.SessionState) {
		now := time.Now()
		transitions := escalation.Apply(st, sig.Decision, msg.SequenceNo, now, g.cfg)

		var events []event.Event
		if sig.Decision != risk.DecisionCrisis {
			// Per-message decision event; on the crisis path the crisis
			// transition event is the per-message record.
			events = append(events, g.newEvent(st, msg, sig.Decision, event.TransitionDecision))
		}
		for _, tr := range transitions {
			events = append(events, g.newEvent(st, msg, sig.Decision, tr.Label))
		}

		for _, ev := range events {
			if err := g.pub.Publish(ctx, ev); err != nil {
				publishErr = err
				return
			}
			out.Events = append(out.Events, ev)
			g.afterPublish(ev)
		}

		// Crisis handling completes when its event is durable: move to
		// cooldown and record that transition too.
		if sig.Decision == risk.DecisionCrisis {
			if tr, ok := escalation.MarkHandled(st, now, g.cfg); ok {
				ev := g.newEvent(st, msg, sig.Decision, tr.Label)
				if err := g.pub.Publish(ctx, ev); err != nil {
					publishErr = err
					return
				}
				out.Events = append(out.Events, ev)
				g.afterPublish(ev)
			}
		}

		out.State = st.Current
	})
	if lockErr != nil {
		return out, lockErr
	}
	if publishErr != nil {
		return out, publishErr
	}

	out.GenerationAllowed = sig.Decision != risk.DecisionCrisis
	return out, nil
}

func (g *Gate) newEvent(st *escalation.SessionState, msg risk.Message, d risk.Decision, transition string) event.Event {
	return event.Event{
		EventID:    uuid.NewString(),
		SessionID:  msg.SessionID,
		MessageRef: msg.Ref(),
		Decision:   d,
		Transition: transition,
		EmittedAt:  time.Now(),
		CausalSeq:  st.NextSeq(),
	}
}

func (g *Gate) afterPublish(ev event.Event) {
	if g.audit != nil {
		if err := g.audit.Event(ev); err != nil {
			g.log.Error("audit event write failed", zap.Error(err))
		}
	}
	if g.fanout != nil {
		g.fanout.Dispatch(ev)
	}
}
