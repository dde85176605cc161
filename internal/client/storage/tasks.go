package storage

import (
	"context"

	"github.com/voxnote/tasksync/internal/models"
)

//go:generate moq -out taskstorage_mock.go . TaskStorage

// TaskStorage defines interface for the durable task collection
type TaskStorage interface {
	// GetTask retrieves a task by id
	// Returns ErrTaskNotFound if task doesn't exist
	GetTask(ctx context.Context, id string) (*models.Task, error)

	// GetAllTasks returns every stored task
	GetAllTasks(ctx context.Context) ([]*models.Task, error)

	// GetFilteredTasks returns tasks passing the filters.
	// Full scan plus in-memory filtering; no network access.
	GetFilteredTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error)

	// SaveTask stores or replaces a task.
	// Stamps created_at when absent and always refreshes updated_at.
	SaveTask(ctx context.Context, task *models.Task) error

	// SaveTasks stores several tasks in one transaction
	SaveTasks(ctx context.Context, tasks []*models.Task) error

	// DeleteTask removes a task by id
	DeleteTask(ctx context.Context, id string) error
}
