package storage

import (
	"context"
	"testing"

	"github.com/dgellow/authfront/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreStorageConfig(t *testing.T) {
	ctx := context.Background()
	key, err := crypto.DeriveKey([]byte("test-encryption-key-32-bytes-ok!"), "storage")
	require.NoError(t, err)
	encryptor, err := crypto.NewEncryptor(key)
	require.NoError(t, err)

	t.Run("missing GCP project ID", func(t *testing.T) {
		_, err := NewFirestoreStorage(ctx, "", "(default)", "test_collection", encryptor)
		assert.ErrorContains(t, err, "projectID is required")
	})

	t.Run("nil encryptor", func(t *testing.T) {
		_, err := NewFirestoreStorage(ctx, "test-project", "(default)", "test_collection", nil)
		assert.ErrorContains(t, err, "encryptor is required")
	})

	t.Run("missing collection", func(t *testing.T) {
		_, err := NewFirestoreStorage(ctx, "test-project", "(default)", "", encryptor)
		assert.ErrorContains(t, err, "collection is required")
	})
}

func TestDocID(t *testing.T) {
	assert.Equal(t, "local__dev-1__auth.token", docID(AreaLocal, "dev-1", AuthTokenKey))
	assert.NotEqual(t, docID(AreaLocal, "x", "k"), docID(AreaSession, "x", "k"))
}
