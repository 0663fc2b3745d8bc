package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signet-dev/signet/errors"
)

func newEntry(value string, ttl time.Duration) *TokenEntry {
	now := time.Now().UTC()
	return &TokenEntry{
		ID:         "t1",
		TokenType:  "access_token",
		TokenValue: value,
		ClientID:   "c1",
		UserID:     "u1",
		Scope:      "read",
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
}

func TestMemoryTokenStore_SetGetDelete(t *testing.T) {
	store := NewMemoryTokenStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, newEntry("v1", time.Hour)))

	got, err := store.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, 1, store.Count(ctx))

	require.NoError(t, store.Delete(ctx, "v1"))
	_, err = store.Get(ctx, "v1")
	assert.ErrorIs(t, err, errors.ErrTokenNotFound)
}

// Entries past their ExpiresAt never enter the cache.
func TestMemoryTokenStore_SkipsExpired(t *testing.T) {
	store := NewMemoryTokenStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, newEntry("stale", -time.Minute)))
	_, err := store.Get(ctx, "stale")
	assert.ErrorIs(t, err, errors.ErrTokenNotFound)
}

func TestMemoryTokenStore_Clear(t *testing.T) {
	store := NewMemoryTokenStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, newEntry("v1", time.Hour)))
	require.NoError(t, store.Set(ctx, newEntry("v2", time.Hour)))
	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, store.Count(ctx))
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
