package storage

import (
	"context"

	"github.com/voxnote/tasksync/internal/models"
)

//go:generate moq -out eventstorage_mock.go . EventStorage

// EventStorage defines interface for the append-only event log
type EventStorage interface {
	// AddEvent appends an event to the log. The store loads or creates
	// the persisted vector clock, bumps the local node's counter and
	// saves the event with the normalized serialized clock.
	// Returns the generated event id.
	AddEvent(ctx context.Context, event *models.Event) (uint64, error)

	// GetEvent retrieves an event by id
	// Returns ErrEventNotFound if event doesn't exist
	GetEvent(ctx context.Context, id uint64) (*models.Event, error)

	// GetPendingEvents returns events not yet acknowledged by the server
	GetPendingEvents(ctx context.Context) ([]*models.Event, error)

	// MarkEventSynced flips the event's sync status to synced
	// and stamps the synced-at time
	MarkEventSynced(ctx context.Context, id uint64) error

	// CompactEvents moves synced events older than the retention window
	// into a compaction archive summary and deletes the originals.
	// Pending events are never compacted regardless of age.
	// retentionDays <= 0 selects the default of 30 days.
	CompactEvents(ctx context.Context, retentionDays int) (*models.CompactionResult, error)

	// GetArchives returns all compaction archive summaries
	GetArchives(ctx context.Context) ([]*models.CompactionArchive, error)
}
