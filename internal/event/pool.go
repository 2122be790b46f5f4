package event

import "sync"

var marketUpdatePool = sync.Pool{
	New: func() any { return new(MarketUpdateEvent) },
}

// AcquireMarketUpdateEvent takes a zeroed event from the pool.
func AcquireMarketUpdateEvent() *MarketUpdateEvent {
	return marketUpdatePool.Get().(*MarketUpdateEvent)
}

// ReleaseMarketUpdateEvent resets ev and returns it to the pool.
// The caller must not touch ev afterwards.
func ReleaseMarketUpdateEvent(ev *MarketUpdateEvent) {
	if ev == nil {
		return
	}
	*ev = MarketUpdateEvent{}
	marketUpdatePool.Put(ev)
}

// Warmup pre-allocates pooled events so the first ticks do not hit the allocator.
func Warmup() {
	const n = 256
	evs := make([]*MarketUpdateEvent, n)
	for i := range evs {
		evs[i] = AcquireMarketUpdateEvent()
	}
	for _, ev := range evs {
		ReleaseMarketUpdateEvent(ev)
	}
}
