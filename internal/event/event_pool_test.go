package event

import (
	"testing"
)

func TestEventPool(t *testing.T) {
	Warmup()

	// Acquire and use
	ev := AcquireMarketUpdateEvent()
	ev.Symbol = "BTC/USD"
	ev.AskMicros = 50050000000

	if ev.Symbol != "BTC/USD" {
		t.Error("Symbol not set")
	}

	// Release
	ReleaseMarketUpdateEvent(ev)

	// Acquire again - should be reset
	ev2 := AcquireMarketUpdateEvent()
	if ev2.Symbol != "" || ev2.AskMicros != 0 {
		t.Error("Event should be reset after release")
	}
	ReleaseMarketUpdateEvent(ev2)
}

// BenchmarkWithoutPool measures allocation without pool
func BenchmarkWithoutPool(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ev := &MarketUpdateEvent{
			Symbol:    "BTC/USD",
			AskMicros: 50050000000,
		}
		_ = ev
	}
}

// BenchmarkWithPool measures allocation with pool
func BenchmarkWithPool(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ev := AcquireMarketUpdateEvent()
		ev.Symbol = "BTC/USD"
		ev.AskMicros = 50050000000
		ReleaseMarketUpdateEvent(ev)
	}
}
