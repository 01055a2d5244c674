package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemoryStorage() (*MemoryStorage, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStorage()
	s.now = clock.Now
	return s, clock
}

func TestMemoryStorageSetGetRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStorage()

	_, err := s.GetItem(ctx, AreaLocal, "dev-1", "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetItem(ctx, AreaLocal, "dev-1", "k", "v1", 0))
	v, err := s.GetItem(ctx, AreaLocal, "dev-1", "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	require.NoError(t, s.SetItem(ctx, AreaLocal, "dev-1", "k", "v2", 0))
	v, err = s.GetItem(ctx, AreaLocal, "dev-1", "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	require.NoError(t, s.RemoveItem(ctx, AreaLocal, "dev-1", "k"))
	_, err = s.GetItem(ctx, AreaLocal, "dev-1", "k")
	assert.ErrorIs(t, err, ErrNotFound)

	// Removing a missing item is not an error
	assert.NoError(t, s.RemoveItem(ctx, AreaLocal, "dev-1", "k"))
}

func TestMemoryStorageIsolation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStorage()

	require.NoError(t, s.SetItem(ctx, AreaLocal, "dev-1", "k", "local", 0))
	require.NoError(t, s.SetItem(ctx, AreaSession, "dev-1", "k", "session", 0))
	require.NoError(t, s.SetItem(ctx, AreaLocal, "dev-2", "k", "other", 0))

	v, _ := s.GetItem(ctx, AreaLocal, "dev-1", "k")
	assert.Equal(t, "local", v)
	v, _ = s.GetItem(ctx, AreaSession, "dev-1", "k")
	assert.Equal(t, "session", v)
	v, _ = s.GetItem(ctx, AreaLocal, "dev-2", "k")
	assert.Equal(t, "other", v)
}

func TestMemoryStorageExpiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestMemoryStorage()

	require.NoError(t, s.SetItem(ctx, AreaSession, "tab", "short", "x", time.Minute))
	require.NoError(t, s.SetItem(ctx, AreaSession, "tab", "forever", "y", 0))

	clock.Advance(59 * time.Second)
	_, err := s.GetItem(ctx, AreaSession, "tab", "short")
	assert.NoError(t, err)

	clock.Advance(time.Second)
	_, err = s.GetItem(ctx, AreaSession, "tab", "short")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, s.Len())

	v, err := s.GetItem(ctx, AreaSession, "tab", "forever")
	require.NoError(t, err)
	assert.Equal(t, "y", v)
}
