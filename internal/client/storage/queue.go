package storage

import (
	"context"

	"github.com/voxnote/tasksync/internal/models"
)

//go:generate moq -out queuestorage_mock.go . QueueStorage

// QueueStorage defines interface for the offline mutation queue
type QueueStorage interface {
	// QueueOperation persists a queue entry and returns its generated id
	QueueOperation(ctx context.Context, entry *models.QueueEntry) (uint64, error)

	// GetQueue returns all queue entries in deterministic replay order:
	// priority descending, vector clock causality, timestamp ascending.
	// The sort is applied on every read; insertion order is never assumed.
	GetQueue(ctx context.Context) ([]*models.QueueEntry, error)

	// RemoveFromQueue deletes a queue entry after confirmed delivery
	RemoveFromQueue(ctx context.Context, id uint64) error

	// ClearQueue removes every queue entry
	ClearQueue(ctx context.Context) error
}
