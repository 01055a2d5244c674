package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thirtyDaysMillis = 2_592_000_000

func newTestBrowser(t *testing.T) (Browser, *MemoryStorage, *fakeClock) {
	t.Helper()
	s, clock := newTestMemoryStorage()
	b := ForBrowser(s, "device-1", "tab-1", BrowserOptions{
		RememberFor: 30 * 24 * time.Hour,
		TabTTL:      time.Hour,
	})
	b.now = clock.Now
	return b, s, clock
}

func TestScopedGetItem(t *testing.T) {
	ctx := context.Background()
	b, _, _ := newTestBrowser(t)

	_, found, err := b.Local.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Local.SetItem(ctx, "k", "v"))
	v, found, err := b.Local.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)

	_, found, err = b.Session.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "areas must not share items")
}

func TestSaveAuthTokenRemembered(t *testing.T) {
	ctx := context.Background()
	b, s, clock := newTestBrowser(t)

	session := json.RawMessage(`{"access_token":"at","refresh_token":"rt"}`)
	require.NoError(t, b.SaveAuthToken(ctx, session, true))

	raw, found, err := b.Local.GetItem(ctx, AuthTokenKey)
	require.NoError(t, err)
	require.True(t, found)

	var rec RememberedSession
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.JSONEq(t, string(session), string(rec.Session))
	assert.Equal(t, clock.Now().UnixMilli()+thirtyDaysMillis, rec.ExpiresAt)

	_, found, err = b.Session.GetItem(ctx, AuthTokenKey)
	require.NoError(t, err)
	assert.False(t, found, "session area must stay untouched")
	assert.Equal(t, 1, s.Len(), "exactly one write per login")
}

func TestSaveAuthTokenNotRemembered(t *testing.T) {
	ctx := context.Background()
	b, s, _ := newTestBrowser(t)

	session := json.RawMessage(`{"access_token":"at"}`)
	require.NoError(t, b.SaveAuthToken(ctx, session, false))

	raw, found, err := b.Session.GetItem(ctx, AuthTokenKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, string(session), raw)

	_, found, err = b.Local.GetItem(ctx, AuthTokenKey)
	require.NoError(t, err)
	assert.False(t, found, "local area must stay untouched")
	assert.Equal(t, 1, s.Len())
}

func TestSessionAreaExpiresWithTabTTL(t *testing.T) {
	ctx := context.Background()
	b, _, clock := newTestBrowser(t)

	require.NoError(t, b.SaveAuthToken(ctx, json.RawMessage(`{}`), false))
	clock.Advance(time.Hour)

	_, found, err := b.Session.GetItem(ctx, AuthTokenKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClearAuthToken(t *testing.T) {
	ctx := context.Background()
	b, s, _ := newTestBrowser(t)

	require.NoError(t, b.SaveAuthToken(ctx, json.RawMessage(`{}`), true))
	require.NoError(t, b.SaveAuthToken(ctx, json.RawMessage(`{}`), false))
	require.NoError(t, b.ClearAuthToken(ctx))
	assert.Equal(t, 0, s.Len())
}
