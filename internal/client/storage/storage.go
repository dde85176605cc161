package storage

import (
	"context"

	"github.com/voxnote/tasksync/internal/models"
)

//go:generate moq -out storage_mock.go . Storage

// Storage is the full durable store contract: the six collections
// (tasks, events, queue, archive, metadata, view state) plus the
// store-wide maintenance operations.
type Storage interface {
	TaskStorage
	EventStorage
	QueueStorage
	MetadataStorage

	// ClearAll wipes every collection. Used only for explicit reset.
	ClearAll(ctx context.Context) error

	// Stats returns counts across all collections plus last-sync and
	// last-compaction metadata for diagnostics
	Stats(ctx context.Context) (*models.StoreStats, error)

	// Close releases the underlying database
	Close() error
}
