package storage

import (
	"context"
	"sync"
	"time"
)

// Ensure MemoryStorage implements Storage
var _ Storage = (*MemoryStorage)(nil)

type itemKey struct {
	area  Area
	owner string
	key   string
}

// MemoryStorage keeps items in process memory. Everything is lost on restart.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[itemKey]*Item
	now   func() time.Time
}

// NewMemoryStorage creates a new storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items: make(map[itemKey]*Item),
		now:   time.Now,
	}
}

func (s *MemoryStorage) SetItem(_ context.Context, area Area, owner, key, value string, ttl time.Duration) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[itemKey{area, owner, key}] = &Item{
		Area:      area,
		Owner:     owner,
		Key:       key,
		Value:     value,
		UpdatedAt: now,
		ExpiresAt: expiry(now, ttl),
	}
	return nil
}

func (s *MemoryStorage) GetItem(_ context.Context, area Area, owner, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemKey{area, owner, key}]
	if !ok || item.expired(s.now()) {
		return "", ErrNotFound
	}
	return item.Value, nil
}

func (s *MemoryStorage) RemoveItem(_ context.Context, area Area, owner, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, itemKey{area, owner, key})
	return nil
}

func (s *MemoryStorage) CleanupExpired(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for k, item := range s.items {
		if item.expired(now) {
			delete(s.items, k)
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored items, expired or not
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStorage) Close() error {
	return nil
}
