package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapter_SetGet(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("v1"), 60))

	got, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
}

func TestMemoryAdapter_TTLExpiry(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }

	require.NoError(t, m.Set(ctx, "k1", []byte("v1"), 10))

	m.now = func() time.Time { return base.Add(9 * time.Second) }
	_, err := m.Get(ctx, "k1")
	assert.NoError(t, err)

	m.now = func() time.Time { return base.Add(11 * time.Second) }
	_, err = m.Get(ctx, "k1")
	assert.Error(t, err)

	stats := m.Stats()
	assert.Equal(t, 0, stats.Size)
}

func TestMemoryAdapter_LRUBound(t *testing.T) {
	m := NewMemoryAdapterWithSize(3)
	ctx := context.Background()

	base := time.Now()
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 60))
	}

	// Touch k0 so k1 becomes the LRU victim.
	_, err := m.Get(ctx, "k0")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "k3", []byte("v"), 60))

	assert.Equal(t, 3, m.Stats().Size)
	_, err = m.Get(ctx, "k1")
	assert.Error(t, err)
	_, err = m.Get(ctx, "k0")
	assert.NoError(t, err)
	_, err = m.Get(ctx, "k3")
	assert.NoError(t, err)
}

func TestMemoryAdapter_InvalidatePattern(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "estat:pop:13101", []byte("a"), 60))
	require.NoError(t, m.Set(ctx, "estat:med:13101", []byte("b"), 60))
	require.NoError(t, m.Set(ctx, "maps:geo:tokyo", []byte("c"), 60))

	require.NoError(t, m.InvalidatePattern(ctx, "estat:"))

	_, err := m.Get(ctx, "estat:pop:13101")
	assert.Error(t, err)
	_, err = m.Get(ctx, "maps:geo:tokyo")
	assert.NoError(t, err)
}

func TestMemoryAdapter_ConcurrentAccess(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	done := make(chan struct{})
	for w := 0; w < 8; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("w%d:k%d", w, i%10)
				_ = m.Set(ctx, key, []byte("v"), 60)
				_, _ = m.Get(ctx, key)
			}
		}(w)
	}
	for w := 0; w < 8; w++ {
		<-done
	}

	assert.LessOrEqual(t, m.Stats().Size, 1000)
}
