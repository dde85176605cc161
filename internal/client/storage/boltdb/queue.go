package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/voxnote/tasksync/internal/client/storage"
	"github.com/voxnote/tasksync/internal/models"
)

// QueueOperation persists a queue entry and returns its generated id
func (s *Storage) QueueOperation(ctx context.Context, entry *models.QueueEntry) (uint64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	var id uint64

	err = db.Update(func(tx *bbolt.Tx) error {
		queue := tx.Bucket(bucketQueue)

		seq, err := queue.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to generate queue id: %w", err)
		}

		entry.ID = seq
		if entry.Timestamp.IsZero() {
			entry.Timestamp = time.Now()
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal queue entry: %w", err)
		}
		if err := queue.Put(itob(seq), data); err != nil {
			return fmt.Errorf("failed to save queue entry: %w", err)
		}

		id = seq
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("queue transaction failed: %w", err)
	}

	return id, nil
}

// GetQueue returns all queue entries in deterministic replay order.
// The three-level sort is applied on every read: bucket iteration order
// is an implementation detail the replay logic must never rely on.
func (s *Storage) GetQueue(ctx context.Context) ([]*models.QueueEntry, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var entries []*models.QueueEntry

	err = db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(k, v []byte) error {
			var entry models.QueueEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal queue entry: %w", err)
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}

	models.SortQueueEntries(entries)
	return entries, nil
}

// RemoveFromQueue deletes a queue entry after confirmed delivery
func (s *Storage) RemoveFromQueue(ctx context.Context, id uint64) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		queue := tx.Bucket(bucketQueue)
		if queue.Get(itob(id)) == nil {
			return storage.ErrQueueEntryNotFound
		}
		return queue.Delete(itob(id))
	})
	if err != nil {
		return err
	}

	return nil
}

// ClearQueue removes every queue entry
func (s *Storage) ClearQueue(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketQueue); err != nil && err != bbolt.ErrBucketNotFound {
			return fmt.Errorf("failed to delete queue bucket: %w", err)
		}
		if _, err := tx.CreateBucket(bucketQueue); err != nil {
			return fmt.Errorf("failed to recreate queue bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear queue transaction failed: %w", err)
	}

	return nil
}
