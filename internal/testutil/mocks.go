package testutil

import (
	"context"
	"time"

	"github.com/dgellow/authfront/internal/storage"
	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of storage.Storage
type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) SetItem(ctx context.Context, area storage.Area, owner, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, area, owner, key, value, ttl)
	return args.Error(0)
}

func (m *MockStorage) GetItem(ctx context.Context, area storage.Area, owner, key string) (string, error) {
	args := m.Called(ctx, area, owner, key)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) RemoveItem(ctx context.Context, area storage.Area, owner, key string) error {
	args := m.Called(ctx, area, owner, key)
	return args.Error(0)
}

func (m *MockStorage) CleanupExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}
