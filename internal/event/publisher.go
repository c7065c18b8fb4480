package event

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/wellmind/crisisgate/internal/risk"
)

// RetryPolicy bounds publish retries. FatalDeadline caps the total time a
// single event may spend retrying before the failure escalates.
type RetryPolicy struct {
	MaxAttempts   uint64
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	FatalDeadline time.Duration
}

// DefaultRetryPolicy suits a local durable store; network-backed stores
// should widen the deadline through configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   5,
		BackoffBase:   10 * time.Millisecond,
		BackoffCap:    250 * time.Millisecond,
		FatalDeadline: 2 * time.Second,
	}
}

// AlarmFunc is the process-level alarm raised when a CRISIS event cannot be
// published within the fatal deadline.
type AlarmFunc func(ev Event, err error)

// Publisher appends events to a durable store with bounded exponential
// backoff. Publication blocks the caller only for durability acknowledgment,
// never for downstream consumer processing.
type Publisher struct {
	store  Store
	policy RetryPolicy
	log    *zap.Logger
	alarm  AlarmFunc
}

// NewPublisher wraps a store with the retry policy. If alarm is nil the
// publisher logs at Fatal level, taking the process down rather than letting
// a dropped crisis event pass silently.
func NewPublisher(store Store, policy RetryPolicy, log *zap.Logger, alarm AlarmFunc) *Publisher {
	p := &Publisher{store: store, policy: policy, log: log, alarm: alarm}
	if p.alarm == nil {
		p.alarm = func(ev Event, err error) {
			log.Fatal("crisis event lost: publish deadline exceeded",
				zap.String("event_id", ev.EventID),
				zap.String("session_id", ev.SessionID),
				zap.Error(err))
		}
	}
	return p
}

// Store exposes the underlying durable store, letting callers seed
// per-session sequence counters from it.
func (p *Publisher) Store() Store { return p.store }

// Publish appends the event, retrying transient failures with exponential
// backoff up to the policy's deadline. For CRISIS events an exhausted
// deadline raises the fatal alarm and returns a FatalError; other events
// return a TransientError for the caller to surface.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.policy.BackoffBase
	bo.MaxInterval = p.policy.BackoffCap
	bo.MaxElapsedTime = p.policy.FatalDeadline

	attempts := 0
	op := func() error {
		attempts++
		return p.store.Append(ev)
	}
	notify := func(err error, next time.Duration) {
		p.log.Warn("publish retry",
			zap.String("event_id", ev.EventID),
			zap.Int("attempt", attempts),
			zap.Duration("next_backoff", next),
			zap.Error(err))
	}

	err := backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(bo, p.policy.MaxAttempts), ctx),
		notify)
	if err == nil {
		return nil
	}

	if ev.Decision == risk.DecisionCrisis {
		p.alarm(ev, err)
		return &FatalError{Event: ev, Err: err}
	}

	p.log.Error("publish failed after retries",
		zap.String("event_id", ev.EventID),
		zap.String("session_id", ev.SessionID),
		zap.Int("attempts", attempts),
		zap.Error(err))
	return &TransientError{Err: err}
}
