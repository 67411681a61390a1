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

func newTestLimiter(maxCalls int, window time.Duration) *Limiter {
	return New(map[string]BucketConfig{
		"test": {MaxCalls: maxCalls, TimeWindow: window},
	})
}

func TestLimiter_WindowBound(t *testing.T) {
	l := newTestLimiter(5, time.Minute)

	base := time.Now()
	l.now = func() time.Time { return base }

	for i := 0; i < 5; i++ {
		assert.True(t, l.Acquire("test"))
	}
	assert.False(t, l.Acquire("test"))

	// The window slides: once the oldest timestamp ages out a slot frees up.
	l.now = func() time.Time { return base.Add(61 * time.Second) }
	assert.True(t, l.Acquire("test"))
}

func TestLimiter_UnknownBucketAlwaysSucceeds(t *testing.T) {
	l := newTestLimiter(1, time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Acquire("unconfigured"))
	}
}

func TestLimiter_AcquireOrWaitCancellation(t *testing.T) {
	l := newTestLimiter(1, time.Minute)
	require.True(t, l.Acquire("test"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.AcquireOrWait(ctx, "test")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_ConcurrentAcquisitionsRespectBound(t *testing.T) {
	l := newTestLimiter(50, time.Minute)

	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire("test") {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), granted)
}

func TestLimiter_AcquireOrWaitEventuallyProceeds(t *testing.T) {
	l := newTestLimiter(2, 200*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 6; i++ {
		require.NoError(t, l.AcquireOrWait(ctx, "test"))
	}
}
