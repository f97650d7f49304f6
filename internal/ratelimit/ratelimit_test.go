package ratelimit

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

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
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

func newTestLimiter(clock *fakeClock) *InMemoryLimiter {
	return NewInMemoryLimiter(Options{
		Capacity: 5,
		Window:   time.Minute,
		Now:      clock.Now,
	})
}

func drain(l *InMemoryLimiter, identity int64) int {
	admitted := 0
	for l.Allow(identity) {
		admitted++
		if admitted > 100 {
			break
		}
	}
	return admitted
}

func TestAllow_FullBucketThenReject(t *testing.T) {
	l := newTestLimiter(newFakeClock())

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(1), "request %d should be admitted", i+1)
	}
	assert.False(t, l.Allow(1), "sixth request inside the window should be rejected")
}

func TestAllow_ProportionalRefill(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	require.Equal(t, 5, drain(l, 7))

	clock.Advance(30 * time.Second)
	assert.True(t, l.Allow(7))
	assert.True(t, l.Allow(7))
	assert.False(t, l.Allow(7), "half a window refills half the bucket")
}

func TestAllow_FullRefillIsCapped(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	require.Equal(t, 5, drain(l, 3))

	clock.Advance(10 * time.Minute)
	assert.Equal(t, 5, drain(l, 3), "refill never exceeds capacity")
}

func TestAllow_IdentitiesAreIndependent(t *testing.T) {
	l := newTestLimiter(newFakeClock())

	require.Equal(t, 5, drain(l, 100))
	assert.True(t, l.Allow(200))
	assert.False(t, l.Allow(100))
}

func TestAllow_EvictedIdentityStartsFresh(t *testing.T) {
	clock := newFakeClock()
	l := NewInMemoryLimiter(Options{
		Capacity:      5,
		Window:        time.Minute,
		MaxIdentities: 2,
		Now:           clock.Now,
	})

	require.Equal(t, 5, drain(l, 1))
	l.Allow(2)
	l.Allow(3)

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 5, drain(l, 1))
}

func TestAllow_ConcurrentSameIdentity(t *testing.T) {
	l := newTestLimiter(newFakeClock())

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(9) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), admitted.Load())
}

func TestBucket_OnePerIdentity(t *testing.T) {
	l := newTestLimiter(newFakeClock())

	first := l.bucket(1)

	assert.Same(t, first, l.bucket(1))
	assert.NotSame(t, first, l.bucket(2))
}

func TestAllow_ConcurrentIdentitiesKeepOwnBudget(t *testing.T) {
	l := newTestLimiter(newFakeClock())

	admitted := make([]atomic.Int32, 20)
	var wg sync.WaitGroup
	for id := range admitted {
		id := id
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.Allow(int64(id)) {
					admitted[id].Add(1)
				}
			}()
		}
	}
	wg.Wait()

	for id := range admitted {
		assert.Equal(t, int32(5), admitted[id].Load(), "identity %d", id)
	}
}

func TestNewInMemoryLimiter_RetentionNotShorterThanWindow(t *testing.T) {
	l := NewInMemoryLimiter(Options{Capacity: 1, Window: time.Hour, Retention: time.Second})
	require.NotNil(t, l)
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
}
