// Package tier defines the three-tier risk aggregation contract: Layer 1
// consumes per-message events, Layer 2 maintains per-session views, Layer 3
// tracks longitudinal trends. This core defines the events each tier
// consumes and a fan-out dispatcher; storage engines behind each tier are a
// downstream concern.
package tier

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wellmind/crisisgate/internal/event"
)

// Consumer receives published events. Events for one session arrive in
// causal order; cross-session ordering is not guaranteed. Consumers must be
// idempotent by event id (the Dedupe wrapper provides this).
type Consumer interface {
	Name() string
	Consume(ev event.Event) error
}

// Fanout delivers each published event to every registered consumer on that
// consumer's own goroutine, so a slow tier never blocks the publisher or the
// other tiers. Per-consumer delivery preserves publish order.
type Fanout struct {
	log       *zap.Logger
	mu        sync.Mutex
	consumers []*consumerLane
	inflight  sync.WaitGroup
	closed    bool
}

type consumerLane struct {
	consumer Consumer
	ch       chan event.Event
	done     chan struct{}
}

// NewFanout creates an empty dispatcher.
func NewFanout(log *zap.Logger) *Fanout {
	return &Fanout{log: log}
}

// Register attaches a consumer. buffer bounds the consumer's queue; a full
// queue blocks only that consumer's lane feeder, applying backpressure per
// tier without coupling tiers to each other. Registering on a closed
// dispatcher is a no-op.
func (f *Fanout) Register(c Consumer, buffer int) {
	if buffer <= 0 {
		buffer = 256
	}
	lane := &consumerLane{
		consumer: c,
		ch:       make(chan event.Event, buffer),
		done:     make(chan struct{}),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.consumers = append(f.consumers, lane)
	f.mu.Unlock()

	go lane.run(f.log)
}

func (l *consumerLane) run(log *zap.Logger) {
	defer close(l.done)
	for ev := range l.ch {
		if err := l.consumer.Consume(ev); err != nil {
			// Consumer errors are the consumer's problem; the stream is
			// durable and can be replayed. Log and keep delivering.
			log.Warn("tier consumer error",
				zap.String("consumer", l.consumer.Name()),
				zap.String("event_id", ev.EventID),
				zap.Error(err))
		}
	}
}

// Dispatch hands the event to every consumer lane. Called after the event is
// durably stored, so delivery here is best-effort fan-out over an already
// safe record; a dispatch after Close is silently dropped for the same
// reason. The in-flight count is registered under the lock, so Close never
// closes a lane channel while a send is pending.
func (f *Fanout) Dispatch(ev event.Event) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	lanes := f.consumers
	f.inflight.Add(1)
	f.mu.Unlock()
	defer f.inflight.Done()

	for _, lane := range lanes {
		lane.ch <- ev
	}
}

// Close refuses new dispatches, waits out in-flight ones, then drains and
// stops all lanes.
func (f *Fanout) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	lanes := f.consumers
	f.mu.Unlock()

	f.inflight.Wait()

	for _, lane := range lanes {
		close(lane.ch)
		<-lane.done
	}
}

// Dedupe wraps a consumer with event-id duplicate detection, giving any
// consumer the required idempotence under at-least-once delivery.
type Dedupe struct {
	inner Consumer
	mu    sync.Mutex
	seen  map[string]bool
}

// NewDedupe wraps the consumer.
func NewDedupe(inner Consumer) *Dedupe {
	return &Dedupe{inner: inner, seen: make(map[string]bool)}
}

func (d *Dedupe) Name() string { return d.inner.Name() }

func (d *Dedupe) Consume(ev event.Event) error {
	d.mu.Lock()
	if d.seen[ev.EventID] {
		d.mu.Unlock()
		return nil
	}
	d.seen[ev.EventID] = true
	d.mu.Unlock()
	return d.inner.Consume(ev)
}
