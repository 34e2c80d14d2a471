package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(Config{RequestsPerSecond: 2, Burst: 2})
	l.now = func() time.Time { return now }
	l.last = now

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(Config{})
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow())
	}
	var nilLim *Limiter
	assert.True(t, nilLim.Allow())
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 1})
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}

func TestManager_PerKey(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})
	assert.True(t, m.Allow("10.0.0.1"))
	assert.False(t, m.Allow("10.0.0.1"))
	assert.True(t, m.Allow("10.0.0.2"))
	assert.Same(t, m.Get("10.0.0.1"), m.Get("10.0.0.1"))
}

func TestManager_SweepIdle(t *testing.T) {
	now := time.Now()
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})
	m.now = func() time.Time { return now }

	stale := m.Get("10.0.0.1")
	stale.now = func() time.Time { return now.Add(-time.Hour) }
	require.True(t, stale.Allow())
	require.True(t, m.Allow("10.0.0.2"))
	require.Equal(t, 2, m.Len())

	assert.Equal(t, 1, m.Sweep(10*time.Minute))
	assert.Equal(t, 1, m.Len())
	assert.NotSame(t, stale, m.Get("10.0.0.1"))
	assert.Equal(t, 0, m.Sweep(10*time.Minute))
}
