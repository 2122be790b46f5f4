// Package feed turns external or simulated prices into MarketUpdateEvents
// for the sequencer.
package feed

import (
	"sync/atomic"

	"paper_trade/internal/domain"
	"paper_trade/internal/event"
)

// Publisher stamps and enqueues events. *event.Gateway implements it.
type Publisher interface {
	TryPublish(ev event.Sequenced) bool
}

// Stats counts what a feed did with the prices it saw.
type Stats struct {
	Published uint64
	Dropped   uint64 // inbox full
	Invalid   uint64 // failed tick validation
}

type counters struct {
	published atomic.Uint64
	dropped   atomic.Uint64
	invalid   atomic.Uint64
}

func (c *counters) stats() Stats {
	return Stats{Published: c.published.Load(), Dropped: c.dropped.Load(), Invalid: c.invalid.Load()}
}

// publish validates tick and hands it to out as a pooled event without
// blocking. A rejected event goes back to the pool.
func publish(out Publisher, source string, tick domain.MarketTick, c *counters) error {
	if err := tick.Normalize(); err != nil {
		c.invalid.Add(1)
		return err
	}

	ev := event.AcquireMarketUpdateEvent()
	ev.Ts = tick.Ts
	ev.Symbol = tick.Symbol
	ev.LastMicros = tick.LastMicros
	ev.BidMicros = tick.BidMicros
	ev.AskMicros = tick.AskMicros
	ev.Source = source

	if out.TryPublish(ev) {
		c.published.Add(1)
		return nil
	}
	c.dropped.Add(1)
	event.ReleaseMarketUpdateEvent(ev)
	return nil
}
