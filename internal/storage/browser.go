package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AuthTokenKey is where the login flow records the provider session
const AuthTokenKey = "auth.token"

// Scoped is one storage area of one browser, with the
// getItem/setItem/removeItem surface of the Web Storage API.
type Scoped struct {
	store Storage
	area  Area
	owner string
	ttl   time.Duration
}

// GetItem reports found=false for missing or expired items
func (s Scoped) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := s.store.GetItem(ctx, s.area, s.owner, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s Scoped) SetItem(ctx context.Context, key, value string) error {
	return s.store.SetItem(ctx, s.area, s.owner, key, value, s.ttl)
}

func (s Scoped) RemoveItem(ctx context.Context, key string) error {
	return s.store.RemoveItem(ctx, s.area, s.owner, key)
}

// Browser groups the local and session areas of one browser
type Browser struct {
	Local   Scoped
	Session Scoped

	rememberFor time.Duration
	now         func() time.Time
}

// BrowserOptions configures lifetimes for ForBrowser
type BrowserOptions struct {
	// RememberFor is the lifetime of local items and of remembered sessions
	RememberFor time.Duration
	// TabTTL bounds session items, since the server never sees the tab close
	TabTTL time.Duration
}

// ForBrowser returns the storage areas of the browser identified by
// deviceID (local) and tabID (session)
func ForBrowser(store Storage, deviceID, tabID string, opts BrowserOptions) Browser {
	return Browser{
		Local:       Scoped{store: store, area: AreaLocal, owner: deviceID, ttl: opts.RememberFor},
		Session:     Scoped{store: store, area: AreaSession, owner: tabID, ttl: opts.TabTTL},
		rememberFor: opts.RememberFor,
		now:         time.Now,
	}
}

// RememberedSession is the local-area record written when the user asked
// to be remembered
type RememberedSession struct {
	Session json.RawMessage `json:"session"`
	// ExpiresAt is in unix milliseconds
	ExpiresAt int64 `json:"expiresAt"`
}

// SaveAuthToken records a freshly obtained provider session. Remembered
// sessions go to the local area wrapped with an expiry, others go verbatim
// to the session area. Exactly one item is written.
func (b Browser) SaveAuthToken(ctx context.Context, session json.RawMessage, remember bool) error {
	if !remember {
		if err := b.Session.SetItem(ctx, AuthTokenKey, string(session)); err != nil {
			return fmt.Errorf("failed to write session area: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(RememberedSession{
		Session:   session,
		ExpiresAt: b.now().UnixMilli() + b.rememberFor.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal remembered session: %w", err)
	}
	if err := b.Local.SetItem(ctx, AuthTokenKey, string(data)); err != nil {
		return fmt.Errorf("failed to write local area: %w", err)
	}
	return nil
}

// ClearAuthToken removes the login record from both areas
func (b Browser) ClearAuthToken(ctx context.Context) error {
	return errors.Join(
		b.Local.RemoveItem(ctx, AuthTokenKey),
		b.Session.RemoveItem(ctx, AuthTokenKey),
	)
}
