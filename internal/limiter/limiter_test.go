package limiter

import (
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

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestAdmitBurstThenDeny(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New[int64](20, 5, WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		require.True(t, l.Admit(1), "admission %d should pass within burst", i+1)
	}
	assert.False(t, l.Admit(1), "burst exhausted")
}

func TestAdmitRefillsAtRate(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New[int64](20, 5, WithClock(clock.Now))
	for i := 0; i < 5; i++ {
		l.Admit(7)
	}

	// 20/minute is one token every 3s.
	clock.Advance(2900 * time.Millisecond)
	assert.False(t, l.Admit(7), "token should not be back before 3s")

	clock.Advance(200 * time.Millisecond)
	assert.True(t, l.Admit(7), "one token after 3s")
	assert.False(t, l.Admit(7), "only one token after 3s")
}

func TestAdmitKeysAreIndependent(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New[int64](1, 1, WithClock(clock.Now))

	assert.True(t, l.Admit(1))
	assert.False(t, l.Admit(1))
	assert.True(t, l.Admit(2), "other key keeps its own bucket")
	assert.Equal(t, 2, l.Len())
}

func TestAdmitDefaults(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New[string](0, 0, WithClock(clock.Now))
	passed := 0
	for i := 0; i < DefaultBurst+3; i++ {
		if l.Admit("u") {
			passed++
		}
	}
	assert.Equal(t, DefaultBurst, passed)
}

func TestAdmitEvictsBeyondMaxKeys(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New[int](60, 1, WithClock(clock.Now), WithMaxKeys(2))
	l.Admit(1)
	l.Admit(2)
	l.Admit(3)
	assert.Equal(t, 2, l.Len())
	// Key 1 was evicted and starts from a full bucket again.
	assert.True(t, l.Admit(1))
}

func TestAdmitEvictsIdleKeys(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New[int64](1, 1, WithClock(clock.Now), WithIdleTTL(50*time.Millisecond))
	require.True(t, l.Admit(9))
	require.False(t, l.Admit(9))
	require.Equal(t, 1, l.Len())

	// Expiry runs on wall time in the background, independent of the rate clock.
	require.Eventually(t, func() bool { return l.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, l.Admit(9), "an evicted key starts from a full bucket")
}

func TestAdmitConcurrent(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New[int64](10, 5, WithClock(clock.Now))

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit(42) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(5), admitted.Load())
}
