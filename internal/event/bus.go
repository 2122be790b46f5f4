package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Bus fans notifications out to subscriber channels.
// Publish never blocks: a subscriber whose buffer is full misses the
// notification and the drop is counted.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Notification
	nextID uint64
	closed bool

	dropped atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan Notification)}
}

// Subscribe registers a subscriber with the given buffer size.
// The returned func unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Notification, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers a copy of n to every subscriber without blocking.
func (b *Bus) Publish(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- n.clone():
		default:
			b.dropped.Add(1)
			slog.Warn("NOTIFICATION_DROPPED",
				slog.Uint64("subscriber", id),
				slog.String("kind", string(n.Kind)),
				slog.Uint64("seq", n.Seq))
		}
	}
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
