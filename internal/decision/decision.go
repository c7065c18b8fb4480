// Package decision merges the deterministic scan verdict with the clinical
// marker score into a single SAFE / CAUTION / CRISIS decision. The decision
// is a total order, never a blend; deterministic guardrails always bypass
// the probabilistic path.
package decision

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wellmind/crisisgate/internal/classifier"
	"github.com/wellmind/crisisgate/internal/pattern"
	"github.com/wellmind/crisisgate/internal/risk"
	"github.com/wellmind/crisisgate/internal/scanner"
)

// Engine decides once per message. Stateless; safe for full parallelism
// across sessions and messages.
type Engine struct {
	scorer           classifier.Scorer
	cautionThreshold float64
	log              *zap.Logger
}

// NewEngine creates a decision engine. The scorer should already carry its
// timeout wrapper; threshold is the configured caution score cutoff.
func NewEngine(scorer classifier.Scorer, cautionThreshold float64, log *zap.Logger) *Engine {
	return &Engine{
		scorer:           scorer,
		cautionThreshold: cautionThreshold,
		log:              log,
	}
}

// Evaluate scans the message against the given rule set and produces its
// immutable RiskSignal. Exactly one signal per message.
//
// Policy:
//   - any crisis-severity match forces CRISIS, unconditionally; the
//     classifier is not consulted and session history cannot suppress it
//   - else caution-severity matches or score >= threshold give CAUTION
//   - else SAFE
//
// Classifier timeout or failure fails open to CAUTION, never down to SAFE.
func (e *Engine) Evaluate(ctx context.Context, msg risk.Message, set *pattern.Set) risk.RiskSignal {
	scan := scanner.Scan(msg.Text, set)

	sig := risk.RiskSignal{
		MessageRef:     msg.Ref(),
		MatchedRules:   scan.RuleIDs(),
		DecidedAt:      time.Now(),
		RuleSetVersion: scan.RuleSetVersion,
	}

	if scan.HasSeverity(pattern.SeverityCrisis) {
		sig.Decision = risk.DecisionCrisis
		return sig
	}

	score, err := e.scorer.Score(ctx, msg.Text)
	if err != nil {
		if errors.Is(err, classifier.ErrTimeout) {
			e.log.Warn("classifier timeout, failing open to CAUTION",
				zap.String("session_id", msg.SessionID),
				zap.Uint64("sequence_no", msg.SequenceNo))
		} else {
			e.log.Warn("classifier error, failing open to CAUTION",
				zap.String("session_id", msg.SessionID),
				zap.Uint64("sequence_no", msg.SequenceNo),
				zap.Error(err))
		}
		sig.Decision = risk.DecisionCaution
		return sig
	}
	sig.ClassifierScore = &score

	if scan.HasSeverity(pattern.SeverityCaution) || score >= e.cautionThreshold {
		sig.Decision = risk.DecisionCaution
		return sig
	}

	sig.Decision = risk.DecisionSafe
	return sig
}
