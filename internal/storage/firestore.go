package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/authfront/internal/crypto"
	"github.com/dgellow/authfront/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Ensure FirestoreStorage implements Storage
var _ Storage = (*FirestoreStorage)(nil)

// FirestoreStorage keeps items in a single Firestore collection.
// Values hold provider sessions, so they are encrypted before being written.
type FirestoreStorage struct {
	client     *firestore.Client
	collection string
	encryptor  crypto.Encryptor
}

// ItemDoc represents an item document in Firestore
type ItemDoc struct {
	Area      Area      `firestore:"area"`
	Owner     string    `firestore:"owner"`
	Key       string    `firestore:"key"`
	Value     string    `firestore:"value"` // Encrypted
	UpdatedAt time.Time `firestore:"updated_at"`
	// ExpiresAt is a unix timestamp, 0 when the item never expires
	ExpiresAt int64 `firestore:"expires_at"`
}

// NewFirestoreStorage creates a new Firestore storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string, encryptor crypto.Encryptor) (*FirestoreStorage, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("firestore", "Connected to Firestore", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreStorage{
		client:     client,
		collection: collection,
		encryptor:  encryptor,
	}, nil
}

func docID(area Area, owner, key string) string {
	return fmt.Sprintf("%s__%s__%s", area, owner, key)
}

func (s *FirestoreStorage) SetItem(ctx context.Context, area Area, owner, key, value string, ttl time.Duration) error {
	encrypted, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt item: %w", err)
	}

	now := time.Now()
	doc := ItemDoc{
		Area:      area,
		Owner:     owner,
		Key:       key,
		Value:     encrypted,
		UpdatedAt: now,
	}
	if exp := expiry(now, ttl); !exp.IsZero() {
		doc.ExpiresAt = exp.Unix()
	}

	if _, err := s.client.Collection(s.collection).Doc(docID(area, owner, key)).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to store item: %w", err)
	}
	return nil
}

func (s *FirestoreStorage) GetItem(ctx context.Context, area Area, owner, key string) (string, error) {
	snap, err := s.client.Collection(s.collection).Doc(docID(area, owner, key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get item: %w", err)
	}

	var doc ItemDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", fmt.Errorf("failed to unmarshal item: %w", err)
	}
	if doc.ExpiresAt != 0 && time.Now().Unix() >= doc.ExpiresAt {
		return "", ErrNotFound
	}

	value, err := s.encryptor.Decrypt(doc.Value)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt item: %w", err)
	}
	return value, nil
}

func (s *FirestoreStorage) RemoveItem(ctx context.Context, area Area, owner, key string) error {
	_, err := s.client.Collection(s.collection).Doc(docID(area, owner, key)).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

func (s *FirestoreStorage) CleanupExpired(ctx context.Context) (int, error) {
	now := time.Now().Unix()
	iter := s.client.Collection(s.collection).
		Where("expires_at", ">", 0).
		Where("expires_at", "<=", now).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	batch := s.client.Batch()
	batchSize := 0
	const maxBatchSize = 500 // Firestore batch write limit

	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to iterate expired items: %w", err)
		}

		batch.Delete(doc.Ref)
		batchSize++
		count++

		if batchSize >= maxBatchSize {
			if _, err := batch.Commit(ctx); err != nil {
				return count, fmt.Errorf("failed to commit batch: %w", err)
			}
			batch = s.client.Batch()
			batchSize = 0
		}
	}

	if batchSize > 0 {
		if _, err := batch.Commit(ctx); err != nil {
			return count, fmt.Errorf("failed to commit final batch: %w", err)
		}
	}

	return count, nil
}

func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
