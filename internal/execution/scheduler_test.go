package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualScheduler_RunsInOrder(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	s := NewManualScheduler(start)

	var got []string
	s.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	s.AfterFunc(time.Second, func() { got = append(got, "a") })
	s.AfterFunc(2*time.Second, func() { got = append(got, "c") })

	s.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, start.Add(1500*time.Millisecond), s.Now())

	s.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Zero(t, s.Pending())
}

func TestManualScheduler_Stop(t *testing.T) {
	s := NewManualScheduler(time.Unix(0, 0))
	fired := false
	tm := s.AfterFunc(time.Second, func() { fired = true })

	require.True(t, tm.Stop())
	require.False(t, tm.Stop(), "second stop reports false")

	s.Advance(time.Minute)
	assert.False(t, fired)
}

func TestManualScheduler_NestedCallbacks(t *testing.T) {
	s := NewManualScheduler(time.Unix(0, 0))
	var at []time.Time
	s.AfterFunc(time.Second, func() {
		at = append(at, s.Now())
		s.AfterFunc(time.Second, func() { at = append(at, s.Now()) })
	})

	s.Advance(5 * time.Second)
	require.Len(t, at, 2)
	assert.Equal(t, time.Unix(1, 0), at[0])
	assert.Equal(t, time.Unix(2, 0), at[1])
	assert.Equal(t, time.Unix(5, 0), s.Now())
}

func TestWallScheduler_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	WallScheduler{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wall timer did not fire")
	}
}
