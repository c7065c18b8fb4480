// Package classifier defines the clinical marker scorer capability consumed
// by the decision engine. The scorer is pluggable: any implementation meeting
// the Score contract can back it. A zero-dependency lexical provider ships
// built-in so the gate runs without an external model.
package classifier

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout marks a score call that exceeded its configured deadline.
// The decision engine fails open to CAUTION on this error, never to SAFE.
var ErrTimeout = errors.New("classifier: score deadline exceeded")

// Scorer produces a continuous risk score for message text.
type Scorer interface {
	// Name returns the provider identifier (e.g. "lexical", "remote").
	Name() string

	// Score returns a risk score in [0,1]. Implementations must respect
	// context cancellation.
	Score(ctx context.Context, text string) (float64, error)
}

// WithTimeout wraps a scorer with a hard deadline. The inner call keeps
// running in its goroutine after the deadline fires; its result is discarded.
func WithTimeout(s Scorer, d time.Duration) Scorer {
	return &timeoutScorer{inner: s, timeout: d}
}

type timeoutScorer struct {
	inner   Scorer
	timeout time.Duration
}

func (t *timeoutScorer) Name() string { return t.inner.Name() }

func (t *timeoutScorer) Score(ctx context.Context, text string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		score float64
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		score, err := t.inner.Score(ctx, text)
		ch <- result{score, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return 0, ErrTimeout
		}
		return r.score, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, ErrTimeout
		}
		return 0, ctx.Err()
	}
}
