package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayContiguousSequence(t *testing.T) {
	inbox := make(chan Event, 1000)
	g := NewGateway(inbox, 41)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ok := g.TryPublish(&MarketUpdateEvent{Symbol: "BTC/USD"})
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()
	close(inbox)

	want := uint64(42)
	for ev := range inbox {
		require.Equal(t, want, ev.GetSeq())
		want++
	}
	assert.Equal(t, uint64(441), g.LastSeq())
}

func TestGatewayFullInboxKeepsSequence(t *testing.T) {
	inbox := make(chan Event, 1)
	g := NewGateway(inbox, 0)

	require.True(t, g.TryPublish(&MarketUpdateEvent{}))
	assert.False(t, g.TryPublish(&MarketUpdateEvent{}))
	assert.Equal(t, uint64(1), g.LastSeq())

	<-inbox
	halt := &SystemHaltEvent{Reason: "test"}
	require.True(t, g.TryPublish(halt))
	assert.Equal(t, uint64(2), halt.Seq)

	seq, ok := g.TryEnqueue(&MarketUpdateEvent{})
	assert.False(t, ok)
	assert.Zero(t, seq)
	<-inbox
	seq, ok = g.TryEnqueue(&MarketUpdateEvent{})
	assert.True(t, ok)
	assert.Equal(t, uint64(3), seq)
}

func TestGatewayPublishWaits(t *testing.T) {
	inbox := make(chan Event, 1)
	g := NewGateway(inbox, 0)
	require.True(t, g.TryPublish(&MarketUpdateEvent{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Publish(ctx, &MarketUpdateEvent{}), context.DeadlineExceeded)

	go func() {
		time.Sleep(10 * time.Millisecond)
		<-inbox
	}()
	require.NoError(t, g.Publish(context.Background(), &MarketUpdateEvent{}))
	assert.Equal(t, uint64(2), g.LastSeq())
}
