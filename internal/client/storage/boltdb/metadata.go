package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/voxnote/tasksync/internal/client/storage"
)

// GetMetadata retrieves a metadata value by key
func (s *Storage) GetMetadata(ctx context.Context, key string) ([]byte, error) {
	return s.getKV(bucketMetadata, key)
}

// SetMetadata stores a metadata value
func (s *Storage) SetMetadata(ctx context.Context, key string, value []byte) error {
	return s.putKV(bucketMetadata, key, value)
}

// GetViewState retrieves a view-state value by key
func (s *Storage) GetViewState(ctx context.Context, key string) ([]byte, error) {
	return s.getKV(bucketViewState, key)
}

// SetViewState stores a view-state value
func (s *Storage) SetViewState(ctx context.Context, key string, value []byte) error {
	return s.putKV(bucketViewState, key, value)
}

// SaveLastSyncTime saves the time of the last successful sync
func (s *Storage) SaveLastSyncTime(ctx context.Context, t time.Time) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		return writeTime(tx.Bucket(bucketMetadata), keyLastSyncTime, t)
	})
	if err != nil {
		return fmt.Errorf("failed to save last sync time: %w", err)
	}

	return nil
}

// GetLastSyncTime retrieves the time of the last successful sync.
// Returns zero time if no sync has been performed yet.
func (s *Storage) GetLastSyncTime(ctx context.Context) (time.Time, error) {
	db, err := s.handle()
	if err != nil {
		return time.Time{}, err
	}

	var result time.Time

	err = db.View(func(tx *bbolt.Tx) error {
		if t, ok := readTime(tx.Bucket(bucketMetadata), keyLastSyncTime); ok {
			result = t
		}
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}

	return result, nil
}

// getKV читает значение из указанного bucket
func (s *Storage) getKV(bucket []byte, key string) ([]byte, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var value []byte

	err = db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucket).Get([]byte(key))
		if raw == nil {
			return storage.ErrKeyNotFound
		}

		// Копируем: данные bolt валидны только внутри транзакции
		value = make([]byte, len(raw))
		copy(value, raw)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// putKV сохраняет значение в указанный bucket
func (s *Storage) putKV(bucket []byte, key string, value []byte) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}

	return nil
}
