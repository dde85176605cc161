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

// GetTask retrieves a task by id
func (s *Storage) GetTask(ctx context.Context, id string) (*models.Task, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var task *models.Task

	err = db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get([]byte(id))
		if data == nil {
			return storage.ErrTaskNotFound
		}

		task = &models.Task{}
		if err := json.Unmarshal(data, task); err != nil {
			return fmt.Errorf("failed to unmarshal task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

// GetAllTasks returns every stored task
func (s *Storage) GetAllTasks(ctx context.Context) ([]*models.Task, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var tasks []*models.Task

	err = db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(k, v []byte) error {
			var task models.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return fmt.Errorf("failed to unmarshal task: %w", err)
			}
			tasks = append(tasks, &task)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get all tasks: %w", err)
	}

	return tasks, nil
}

// GetFilteredTasks returns tasks passing the filters.
// Full scan plus in-memory filtering; no network access.
func (s *Storage) GetFilteredTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error) {
	all, err := s.GetAllTasks(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	filtered := make([]*models.Task, 0, len(all))
	for _, task := range all {
		if filters.Matches(task, now) {
			filtered = append(filtered, task)
		}
	}

	return filtered, nil
}

// SaveTask stores or replaces a task.
// Stamps created_at when absent and always refreshes updated_at.
func (s *Storage) SaveTask(ctx context.Context, task *models.Task) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		return putTask(tx, task)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// SaveTasks stores several tasks in one transaction
func (s *Storage) SaveTasks(ctx context.Context, tasks []*models.Task) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, task := range tasks {
			if err := putTask(tx, task); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// putTask сохраняет задачу внутри открытой транзакции
func putTask(tx *bbolt.Tx, task *models.Task) error {
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := tx.Bucket(bucketTasks).Put([]byte(task.ID), data); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// DeleteTask removes a task by id
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTasks).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}
