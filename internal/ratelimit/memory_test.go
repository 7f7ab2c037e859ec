package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryGovernor_SixteenthSearchRejected(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	g := newMemoryGovernor(SearchPolicy(), clock.Now)

	for i := 1; i <= 15; i++ {
		d, err := g.Consume(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Accepted, "request %d should pass", i)
		assert.Equal(t, 15-i, d.RemainingPoints)
	}

	clock.Advance(4 * time.Second)
	d, err := g.Consume(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, 0, d.RemainingPoints)
	assert.Equal(t, int64(6000), d.MsBeforeNext)
	assert.Equal(t, 6, d.RetryAfterSeconds())
}

func TestMemoryGovernor_WindowRefillsFully(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	g := newMemoryGovernor(Policy{Name: "t", Points: 2, Window: time.Second}, clock.Now)

	for i := 0; i < 5; i++ {
		_, err := g.Consume(ctx, "k")
		require.NoError(t, err)
	}

	clock.Advance(time.Second)
	d, err := g.Consume(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, 1, d.RemainingPoints)
}

func TestMemoryGovernor_IdentifiersAreIndependent(t *testing.T) {
	ctx := context.Background()
	g := newMemoryGovernor(Policy{Name: "t", Points: 1, Window: time.Minute}, newFakeClock().Now)

	d, _ := g.Consume(ctx, "a")
	assert.True(t, d.Accepted)
	d, _ = g.Consume(ctx, "a")
	assert.False(t, d.Accepted)
	d, _ = g.Consume(ctx, "b")
	assert.True(t, d.Accepted)
}

func TestMemoryGovernor_SweepEvictsExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	g := newMemoryGovernor(Policy{Name: "t", Points: 5, Window: time.Second}, clock.Now)

	_, _ = g.Consume(ctx, "a")
	clock.Advance(500 * time.Millisecond)
	_, _ = g.Consume(ctx, "b")
	require.Equal(t, 2, g.len())

	clock.Advance(600 * time.Millisecond)
	g.sweep()
	assert.Equal(t, 1, g.len())
}

func TestMemoryGovernor_ConcurrentConsumeIsAtomic(t *testing.T) {
	ctx := context.Background()
	g := newMemoryGovernor(SearchPolicy(), newFakeClock().Now)

	var accepted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := g.Consume(ctx, "shared")
			assert.NoError(t, err)
			if d.Accepted {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(15), accepted.Load())
}

func TestMemoryGovernor_CancelledContextIsFault(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := newMemoryGovernor(SearchPolicy(), time.Now)

	_, err := g.Consume(ctx, "k")
	assert.ErrorIs(t, err, ErrGovernorFault)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewMemoryGovernor_Close(t *testing.T) {
	g := NewMemoryGovernor(AutocompletePolicy())
	g.Close()
	g.Close()

	d, err := g.Consume(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 29, d.RemainingPoints)
}

func TestDecision_RetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, Decision{MsBeforeNext: 0}.RetryAfterSeconds())
	assert.Equal(t, 1, Decision{MsBeforeNext: 1}.RetryAfterSeconds())
	assert.Equal(t, 2, Decision{MsBeforeNext: 1001}.RetryAfterSeconds())
	assert.Equal(t, 10, Decision{MsBeforeNext: 10000}.RetryAfterSeconds())
}
