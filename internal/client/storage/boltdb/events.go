package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/voxnote/tasksync/internal/client/storage"
	"github.com/voxnote/tasksync/internal/crdt"
	"github.com/voxnote/tasksync/internal/models"
)

// defaultRetentionDays is the event log retention window for compaction
const defaultRetentionDays = 30

// AddEvent appends an event to the log. The persisted vector clock is
// loaded (or created), the local node's counter is bumped, and the
// event is stored with the normalized serialized clock.
// Returns the generated event id.
func (s *Storage) AddEvent(ctx context.Context, event *models.Event) (uint64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	var id uint64

	err = db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMetadata)

		// Загружаем или создаем персистентные часы
		vc := crdt.New()
		if raw := meta.Get([]byte(keyVectorClock)); raw != nil {
			var pairs []crdt.Pair
			if err := json.Unmarshal(raw, &pairs); err != nil {
				return fmt.Errorf("failed to unmarshal vector clock: %w", err)
			}
			vc = crdt.FromPairs(pairs)
		}

		// Узел увеличивает только собственный счетчик
		vc.Bump(s.nodeID)

		clockData, err := json.Marshal(vc.Pairs())
		if err != nil {
			return fmt.Errorf("failed to marshal vector clock: %w", err)
		}
		if err := meta.Put([]byte(keyVectorClock), clockData); err != nil {
			return fmt.Errorf("failed to save vector clock: %w", err)
		}

		events := tx.Bucket(bucketEvents)
		seq, err := events.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to generate event id: %w", err)
		}

		event.ID = seq
		event.Clock = vc.Pairs()
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now()
		}
		if event.SyncStatus == "" {
			event.SyncStatus = models.SyncPending
		}

		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if err := events.Put(itob(seq), data); err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}

		id = seq
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add event transaction failed: %w", err)
	}

	return id, nil
}

// GetEvent retrieves an event by id
func (s *Storage) GetEvent(ctx context.Context, id uint64) (*models.Event, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var event *models.Event

	err = db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEvents).Get(itob(id))
		if data == nil {
			return storage.ErrEventNotFound
		}

		event = &models.Event{}
		if err := json.Unmarshal(data, event); err != nil {
			return fmt.Errorf("failed to unmarshal event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return event, nil
}

// GetPendingEvents returns events not yet acknowledged by the server
func (s *Storage) GetPendingEvents(ctx context.Context) ([]*models.Event, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var events []*models.Event

	err = db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			var event models.Event
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}
			if event.SyncStatus == models.SyncPending {
				events = append(events, &event)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}

	return events, nil
}

// MarkEventSynced flips the event's sync status to synced and stamps
// the synced-at time. Events are otherwise immutable after append.
func (s *Storage) MarkEventSynced(ctx context.Context, id uint64) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		events := tx.Bucket(bucketEvents)

		data := events.Get(itob(id))
		if data == nil {
			return storage.ErrEventNotFound
		}

		var event models.Event
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("failed to unmarshal event: %w", err)
		}

		now := time.Now()
		event.SyncStatus = models.SyncSynced
		event.SyncedAt = &now

		updated, err := json.Marshal(&event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if err := events.Put(itob(id), updated); err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark synced transaction failed: %w", err)
	}

	return nil
}

// CompactEvents moves synced events older than the retention window
// into one compaction archive summary and deletes the originals.
// Pending events are never compacted regardless of age: that invariant
// protects at-least-once delivery.
func (s *Storage) CompactEvents(ctx context.Context, retentionDays int) (*models.CompactionResult, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result := &models.CompactionResult{
		Cutoff:        cutoff,
		RetentionDays: retentionDays,
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		events := tx.Bucket(bucketEvents)

		var purge [][]byte
		archive := &models.CompactionArchive{
			ArchivedAt: time.Now(),
			ByType:     make(map[string]int),
		}

		err := events.ForEach(func(k, v []byte) error {
			var event models.Event
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}

			// Pending события не компактируются независимо от возраста
			if event.SyncStatus != models.SyncSynced {
				return nil
			}
			if !event.Timestamp.Before(cutoff) {
				return nil
			}

			if archive.Count == 0 || event.Timestamp.Before(archive.OldestEvent) {
				archive.OldestEvent = event.Timestamp
			}
			if archive.Count == 0 || event.Timestamp.After(archive.NewestEvent) {
				archive.NewestEvent = event.Timestamp
			}
			archive.ByType[event.Type]++
			archive.Count++

			key := make([]byte, len(k))
			copy(key, k)
			purge = append(purge, key)
			return nil
		})
		if err != nil {
			return err
		}

		if len(purge) == 0 {
			return nil
		}

		for _, key := range purge {
			if err := events.Delete(key); err != nil {
				return fmt.Errorf("failed to delete compacted event: %w", err)
			}
		}

		archives := tx.Bucket(bucketArchive)
		seq, err := archives.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to generate archive id: %w", err)
		}
		archive.ID = seq

		data, err := json.Marshal(archive)
		if err != nil {
			return fmt.Errorf("failed to marshal archive: %w", err)
		}
		if err := archives.Put(itob(seq), data); err != nil {
			return fmt.Errorf("failed to save archive: %w", err)
		}

		if err := writeTime(tx.Bucket(bucketMetadata), keyLastCompactionTime, archive.ArchivedAt); err != nil {
			return fmt.Errorf("failed to save compaction time: %w", err)
		}

		result.Compacted = archive.Count
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("compaction transaction failed: %w", err)
	}

	return result, nil
}

// GetArchives returns all compaction archive summaries
func (s *Storage) GetArchives(ctx context.Context) ([]*models.CompactionArchive, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var archives []*models.CompactionArchive

	err = db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketArchive).ForEach(func(k, v []byte) error {
			var archive models.CompactionArchive
			if err := json.Unmarshal(v, &archive); err != nil {
				return fmt.Errorf("failed to unmarshal archive: %w", err)
			}
			archives = append(archives, &archive)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get archives: %w", err)
	}

	return archives, nil
}
