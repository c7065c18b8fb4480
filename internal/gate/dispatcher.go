package gate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wellmind/crisisgate/internal/risk"
)

// Dispatcher gives each session its own worker goroutine so messages for one
// session process strictly in arrival order while different sessions run
// fully in parallel.
type Dispatcher struct {
	gate   *Gate
	log    *zap.Logger
	buffer int

	// OnOutcome, when set before the first Submit, is called from the
	// session worker after each successfully gated message.
	OnOutcome func(risk.Message, Outcome)

	mu       sync.Mutex
	lanes    map[string]chan risk.Message
	wg       sync.WaitGroup
	inflight sync.WaitGroup
	closed   bool
}

// NewDispatcher creates a dispatcher over the gate.
func NewDispatcher(g *Gate, buffer int, log *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		gate:   g,
		log:    log,
		buffer: buffer,
		lanes:  make(map[string]chan risk.Message),
	}
}

// Submit enqueues the message on its session's lane, starting a worker on
// first use. Blocks only when that session's lane is full. The in-flight
// count is registered under the lock, so Close never closes a lane while a
// send is pending.
func (d *Dispatcher) Submit(ctx context.Context, msg risk.Message) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return context.Canceled
	}
	lane, ok := d.lanes[msg.SessionID]
	if !ok {
		lane = make(chan risk.Message, d.buffer)
		d.lanes[msg.SessionID] = lane
		d.wg.Add(1)
		go d.run(ctx, lane)
	}
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	lane <- msg
	return nil
}

func (d *Dispatcher) run(ctx context.Context, lane <-chan risk.Message) {
	defer d.wg.Done()
	for msg := range lane {
		out, err := d.gate.Process(ctx, msg)
		if err != nil {
			d.log.Error("message processing failed",
				zap.String("session_id", msg.SessionID),
				zap.Uint64("sequence_no", msg.SequenceNo),
				zap.Error(err))
			continue
		}
		if d.OnOutcome != nil {
			d.OnOutcome(msg, out)
		}
	}
}

// Close refuses new submits, waits out in-flight ones, then drains every
// lane and waits for the workers to finish. Workers keep consuming until
// their lane closes, so pending sends always complete.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.inflight.Wait()

	d.mu.Lock()
	for _, lane := range d.lanes {
		close(lane)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
