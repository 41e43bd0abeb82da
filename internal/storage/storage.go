package storage

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by the storage backends
var (
	ErrNotFound   = errors.New("key not found")
	ErrEmptyKey   = errors.New("storage key must not be empty")
	ErrNilStorage = errors.New("storage is nil")
)

// Storage is a key-value store for serialized state snapshots.
// Keys are partitioned by prefix (cart:, user:, order:) so writers never overlap.
type Storage interface {
	// Get returns the stored value or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl keeps the value until it is overwritten or deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend connection
	Close(ctx context.Context) error
}
