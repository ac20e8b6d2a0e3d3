package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credstack/rotor/internal/secure"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	_, _, err := store.Get(context.Background(), "auth/jwt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_PutAndGet(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	v1, err := store.Put(context.Background(), "auth/jwt", secure.NewBufferFromString("first"), "initial")
	require.NoError(t, err)
	assert.Equal(t, "v1", v1.Ref)
	assert.Equal(t, now, v1.CreatedAt)

	v2, err := store.Put(context.Background(), "auth/jwt", secure.NewBufferFromString("second"), "rotated")
	require.NoError(t, err)
	assert.Equal(t, "v2", v2.Ref)

	buf, got, err := store.Get(context.Background(), "auth/jwt")
	require.NoError(t, err)
	defer buf.Destroy()

	value, err := buf.String()
	require.NoError(t, err)
	assert.Equal(t, "second", value)
	assert.Equal(t, "v2", got.Ref)
	assert.Equal(t, 2, store.VersionCount("auth/jwt"))
	assert.Equal(t, "rotated", store.Description("auth/jwt"))
}
