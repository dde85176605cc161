package storage

import (
	"context"
	"time"
)

//go:generate moq -out metadatastorage_mock.go . MetadataStorage

// MetadataStorage defines interface for small cross-session key-value
// slots: sync bookkeeping, the persisted vector clock, view state
// (filters, scroll position).
type MetadataStorage interface {
	// GetMetadata retrieves a metadata value by key
	// Returns ErrKeyNotFound if the key has no value
	GetMetadata(ctx context.Context, key string) ([]byte, error)

	// SetMetadata stores a metadata value
	SetMetadata(ctx context.Context, key string, value []byte) error

	// GetViewState retrieves a view-state value by key
	// Returns ErrKeyNotFound if the key has no value
	GetViewState(ctx context.Context, key string) ([]byte, error)

	// SetViewState stores a view-state value
	SetViewState(ctx context.Context, key string, value []byte) error

	// SaveLastSyncTime saves the time of the last successful sync
	SaveLastSyncTime(ctx context.Context, t time.Time) error

	// GetLastSyncTime retrieves the time of the last successful sync
	// Returns zero time if no sync has been performed yet
	GetLastSyncTime(ctx context.Context) (time.Time, error)
}
