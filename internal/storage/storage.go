package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an item doesn't exist or has expired
var ErrNotFound = errors.New("item not found")

// Area is one of the two browser storage areas
type Area string

const (
	// AreaLocal is keyed by device id and survives browser restarts
	AreaLocal Area = "local"
	// AreaSession is keyed by tab id and ends with the browser session
	AreaSession Area = "session"
)

// Item is a single stored value
type Item struct {
	Area      Area
	Owner     string
	Key       string
	Value     string
	UpdatedAt time.Time
	// ExpiresAt is zero for items that never expire
	ExpiresAt time.Time
}

func (i *Item) expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Storage keeps browser storage areas on the server
type Storage interface {
	// SetItem stores value, replacing any previous one. A ttl <= 0 never expires.
	SetItem(ctx context.Context, area Area, owner, key, value string, ttl time.Duration) error
	// GetItem returns ErrNotFound for missing or expired items
	GetItem(ctx context.Context, area Area, owner, key string) (string, error)
	RemoveItem(ctx context.Context, area Area, owner, key string) error
	// CleanupExpired deletes expired items and reports how many were removed
	CleanupExpired(ctx context.Context) (int, error)
	Close() error
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
