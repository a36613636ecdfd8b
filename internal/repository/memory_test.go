package repository

import (
	"context"
	"sync"
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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryQuotaRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("ConsumesUpToLimit", func(t *testing.T) {
		repo := NewMemoryQuotaRepository(nil)

		allowed, remaining, err := repo.Take(ctx, "203.0.113.7", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 2, remaining)

		allowed, remaining, err = repo.Take(ctx, "203.0.113.7", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 1, remaining)

		allowed, remaining, err = repo.Take(ctx, "203.0.113.7", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 0, remaining)

		allowed, remaining, err = repo.Take(ctx, "203.0.113.7", 3, time.Hour)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		repo := NewMemoryQuotaRepository(nil)

		allowed, _, err := repo.Take(ctx, "10.0.0.1", 1, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, _, err = repo.Take(ctx, "10.0.0.1", 1, time.Hour)
		require.NoError(t, err)
		assert.False(t, allowed)

		allowed, _, err = repo.Take(ctx, "10.0.0.2", 1, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("WindowResetsAfterExpiry", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
		repo := NewMemoryQuotaRepository(clock)

		for i := 0; i < 3; i++ {
			allowed, _, err := repo.Take(ctx, "ip", 3, time.Hour)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, _, err := repo.Take(ctx, "ip", 3, time.Hour)
		require.NoError(t, err)
		assert.False(t, allowed)

		clock.Advance(time.Hour + time.Second)

		allowed, remaining, err := repo.Take(ctx, "ip", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 2, remaining)
	})

	t.Run("WindowIsFixedNotSliding", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
		repo := NewMemoryQuotaRepository(clock)

		// Hits inside the window do not push the expiry forward.
		repo.Take(ctx, "ip", 2, time.Hour)
		clock.Advance(50 * time.Minute)
		repo.Take(ctx, "ip", 2, time.Hour)

		clock.Advance(11 * time.Minute) // 61m after the first hit

		_, remaining, err := repo.Take(ctx, "ip", 2, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, remaining)
	})

	t.Run("ConcurrentTakes", func(t *testing.T) {
		repo := NewMemoryQuotaRepository(nil)

		var wg sync.WaitGroup
		var mu sync.Mutex
		allowedCount := 0

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				allowed, _, err := repo.Take(ctx, "shared", 5, time.Hour)
				require.NoError(t, err)
				if allowed {
					mu.Lock()
					allowedCount++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 5, allowedCount)
	})
}
