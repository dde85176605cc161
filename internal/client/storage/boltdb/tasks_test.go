package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxnote/tasksync/internal/client/storage"
	"github.com/voxnote/tasksync/internal/models"
)

func TestSaveTask_StampsTimestamps(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	task := &models.Task{ID: "1", Title: "Review transcript", Status: models.StatusTodo}
	require.NoError(t, store.SaveTask(ctx, task))

	saved, err := store.GetTask(ctx, "1")
	require.NoError(t, err)
	assert.False(t, saved.CreatedAt.IsZero(), "created_at stamped when absent")
	assert.False(t, saved.UpdatedAt.IsZero())

	createdAt := saved.CreatedAt

	// Повторное сохранение обновляет только updated_at
	time.Sleep(5 * time.Millisecond)
	saved.Title = "Review transcript again"
	require.NoError(t, store.SaveTask(ctx, saved))

	updated, err := store.GetTask(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, createdAt.UnixNano(), updated.CreatedAt.UnixNano())
	assert.True(t, updated.UpdatedAt.After(createdAt))
}

func TestGetTask_NotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)
}

func TestSaveTasks_Bulk(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tasks := []*models.Task{
		{ID: "1", Title: "a", Status: models.StatusTodo},
		{ID: "2", Title: "b", Status: models.StatusInProgress},
		{ID: "3", Title: "c", Status: models.StatusCompleted},
	}
	require.NoError(t, store.SaveTasks(ctx, tasks))

	all, err := store.GetAllTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteTask(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, &models.Task{ID: "1", Title: "a"}))
	require.NoError(t, store.DeleteTask(ctx, "1"))

	_, err := store.GetTask(ctx, "1")
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)
}

func TestGetFilteredTasks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	yesterday := time.Now().AddDate(0, 0, -1)
	tasks := []*models.Task{
		{ID: "1", Title: "Prepare agenda", Status: models.StatusTodo, Priority: models.PriorityHigh, Labels: []string{"meeting"}},
		{ID: "2", Title: "Send minutes", Status: models.StatusCompleted, Priority: models.PriorityLow},
		{ID: "3", Title: "Fix agenda typos", Status: models.StatusTodo, Priority: models.PriorityLow, DueDate: &yesterday},
	}
	require.NoError(t, store.SaveTasks(ctx, tasks))

	todo, err := store.GetFilteredTasks(ctx, models.TaskFilters{Status: models.StatusTodo})
	require.NoError(t, err)
	assert.Len(t, todo, 2)

	agenda, err := store.GetFilteredTasks(ctx, models.TaskFilters{Search: "AGENDA"})
	require.NoError(t, err)
	assert.Len(t, agenda, 2, "search is case-insensitive over title and description")

	overdue, err := store.GetFilteredTasks(ctx, models.TaskFilters{DueBucket: models.DueOverdue})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "3", overdue[0].ID)

	labeled, err := store.GetFilteredTasks(ctx, models.TaskFilters{Labels: []string{"meeting"}})
	require.NoError(t, err)
	require.Len(t, labeled, 1)
	assert.Equal(t, "1", labeled[0].ID)
}
