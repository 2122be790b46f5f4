package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/event"
	"paper_trade/internal/infra"
	"paper_trade/pkg/quant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func tickEvent(seq uint64, symbol string, bid, ask quant.PriceMicros) *event.MarketUpdateEvent {
	return &event.MarketUpdateEvent{
		BaseEvent:  event.BaseEvent{Seq: seq, Ts: quant.TimeStamp(seq * 1000)},
		Symbol:     symbol,
		BidMicros:  bid,
		AskMicros:  ask,
		LastMicros: (bid + ask) / 2,
		Source:     "TEST",
	}
}

func TestJournalTicks(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	last, err := j.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), last)

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, j.SaveTick(ctx, tickEvent(seq, "BTC/USD", 49_000_000_000, 49_010_000_000)))
	}
	require.Error(t, j.SaveTick(ctx, tickEvent(2, "BTC/USD", 1, 2)), "sequence numbers are unique")

	last, err = j.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)

	ticks, err := j.LoadTicks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, uint64(2), ticks[0].Seq)
	assert.Equal(t, uint64(3), ticks[1].Seq)
	assert.Equal(t, *tickEvent(3, "BTC/USD", 49_000_000_000, 49_010_000_000), *ticks[1])
}

func TestJournalReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := OpenJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.SaveTick(ctx, tickEvent(41, "ETH/USD", 2_999_000_000, 3_001_000_000)))
	require.NoError(t, j.UpsertMetadata(ctx, "initial_cash", "100000", 1))
	require.NoError(t, j.Close())

	j, err = OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()

	last, err := j.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(41), last)

	v, err := j.GetMetadata(ctx, "initial_cash")
	require.NoError(t, err)
	assert.Equal(t, "100000", v)
}

func TestJournalMetadata(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	v, err := j.GetMetadata(ctx, "cash_currency")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, j.UpsertMetadata(ctx, "cash_currency", "USD", 1))
	require.NoError(t, j.UpsertMetadata(ctx, "cash_currency", "EUR", 2))

	v, err = j.GetMetadata(ctx, "cash_currency")
	require.NoError(t, err)
	assert.Equal(t, "EUR", v)
}

func placed(seq uint64, id string) event.Notification {
	n := event.OrderNotification(event.KindOrderPlaced, domain.Order{
		ID:           id,
		Symbol:       "BTC/USD",
		Side:         domain.SideBuy,
		Type:         domain.OrderTypeMarket,
		QtySats:      quant.QtyScale,
		Status:       domain.StatusPending,
		RemainingQty: quant.QtyScale,
	})
	n.Seq = seq
	n.Ts = quant.TimeStamp(seq)
	return n
}

func TestJournalNotifications(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.SaveNotification(ctx, placed(1, "ord-1")))
	require.NoError(t, j.SaveNotification(ctx, placed(2, "ord-2")))
	reset := event.Notification{Seq: 3, Ts: 3, Kind: event.KindReset, InitialCash: 100 * quant.PriceScale}
	require.NoError(t, j.SaveNotification(ctx, reset))

	all, err := j.LoadNotifications(ctx, 0, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, placed(1, "ord-1"), all[0].Notification)
	assert.Equal(t, reset, all[2].Notification)

	page, err := j.LoadNotifications(ctx, all[0].ID, "", 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(2), page[0].Notification.Seq)

	byOrder, err := j.LoadNotifications(ctx, 0, "ord-2", 10)
	require.NoError(t, err)
	require.Len(t, byOrder, 1)
	assert.Equal(t, "ord-2", byOrder[0].Notification.Order.ID)
}

func TestJournalRun(t *testing.T) {
	j := openTestJournal(t)
	ch := make(chan event.Notification, 4)
	ch <- placed(1, "ord-1")
	ch <- placed(2, "ord-1")
	close(ch)

	j.Run(context.Background(), ch)

	got, err := j.LoadNotifications(context.Background(), 0, "", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Zero(t, j.Skipped())
}

func TestJournalRunOpensCircuit(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	j.breaker = infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		Name:             "journal",
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})
	require.NoError(t, j.Close())

	ch := make(chan event.Notification, 5)
	for i := uint64(1); i <= 5; i++ {
		ch <- placed(i, "ord-1")
	}
	close(ch)

	j.Run(context.Background(), ch)
	assert.Equal(t, uint64(3), j.Skipped())
	assert.Equal(t, infra.StateOpen, j.breaker.GetState())
}

func TestJournalRunStopsOnCancel(t *testing.T) {
	j := openTestJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx, make(chan event.Notification))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
