package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eduforge/tutorgw/internal/domain"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should round-trip a value", func(t *testing.T) {
		store := NewStore(4)
		require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Hour))

		value, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), value)
	})

	t.Run("should miss for unknown keys", func(t *testing.T) {
		store := NewStore(4)
		_, err := store.Get(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("should expire entries lazily on read", func(t *testing.T) {
		store := NewStore(4)
		clock := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return clock }

		require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute))

		clock = clock.Add(2 * time.Minute)
		_, err := store.Get(ctx, "k1")
		require.ErrorIs(t, err, domain.ErrCacheMiss)
		require.Zero(t, store.Len())
	})

	t.Run("should evict the oldest entry under capacity pressure", func(t *testing.T) {
		store := NewStore(3)
		clock := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return clock }

		for i := 0; i < 3; i++ {
			require.NoError(t, store.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour))
			clock = clock.Add(time.Second)
		}
		require.NoError(t, store.Set(ctx, "k3", []byte("v"), time.Hour))

		require.Equal(t, 3, store.Len())
		_, err := store.Get(ctx, "k0")
		require.ErrorIs(t, err, domain.ErrCacheMiss)

		_, err = store.Get(ctx, "k3")
		require.NoError(t, err)
	})

	t.Run("should overwrite an existing key without eviction", func(t *testing.T) {
		store := NewStore(2)
		require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Hour))
		require.NoError(t, store.Set(ctx, "k2", []byte("v2"), time.Hour))
		require.NoError(t, store.Set(ctx, "k1", []byte("v1b"), time.Hour))

		require.Equal(t, 2, store.Len())
		value, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		require.Equal(t, []byte("v1b"), value)
	})

	t.Run("should clear a key", func(t *testing.T) {
		store := NewStore(4)
		require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Hour))
		require.NoError(t, store.Clear(ctx, "k1"))

		_, err := store.Get(ctx, "k1")
		require.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("should fall back to the default capacity", func(t *testing.T) {
		store := NewStore(0)
		require.Equal(t, DefaultMaxEntries, store.maxEntries)
	})
}
