package event

import (
	"context"
	"sync"
)

// Gateway is the single entry point into a sequencer inbox. It stamps each
// event with the next sequence number and enqueues it in one step, so the
// inbox always sees contiguous numbers even with several producers.
type Gateway struct {
	mu    sync.Mutex
	inbox chan<- Event
	last  uint64
}

// NewGateway creates a gateway whose first event gets lastSeq+1.
func NewGateway(inbox chan<- Event, lastSeq uint64) *Gateway {
	return &Gateway{inbox: inbox, last: lastSeq}
}

// TryPublish enqueues ev without blocking. On a full inbox it returns false
// and no sequence number is consumed.
func (g *Gateway) TryPublish(ev Sequenced) bool {
	_, ok := g.TryEnqueue(ev)
	return ok
}

// TryEnqueue is TryPublish that also returns the number ev was given.
func (g *Gateway) TryEnqueue(ev Sequenced) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	seq := g.last + 1
	ev.SetSeq(seq)
	select {
	case g.inbox <- ev:
		g.last = seq
		return seq, true
	default:
		return 0, false
	}
}

// Publish enqueues ev, waiting for room until ctx is done.
// Other producers wait behind it.
func (g *Gateway) Publish(ctx context.Context, ev Sequenced) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ev.SetSeq(g.last + 1)
	select {
	case g.inbox <- ev:
		g.last++
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastSeq returns the number of the last enqueued event.
func (g *Gateway) LastSeq() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
