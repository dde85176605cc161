package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxnote/tasksync/internal/client/storage"
	"github.com/voxnote/tasksync/internal/crdt"
	"github.com/voxnote/tasksync/internal/models"
)

func TestQueueOperation_AssignsIDs(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first, err := store.QueueOperation(ctx, &models.QueueEntry{
		OperationID: "op-1",
		Op:          models.Operation{Type: models.OpCreate},
		Priority:    10,
	})
	require.NoError(t, err)

	second, err := store.QueueOperation(ctx, &models.QueueEntry{
		OperationID: "op-2",
		Op:          models.Operation{Type: models.OpUpdate, TaskID: "1"},
		Priority:    5,
	})
	require.NoError(t, err)

	assert.Greater(t, second, first, "queue ids are monotonically increasing")
}

func TestGetQueue_SortedOnEveryRead(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Вставляем в порядке, противоположном порядку воспроизведения
	entries := []*models.QueueEntry{
		{OperationID: "low", Priority: 5, Timestamp: base.Add(3 * time.Second), Clock: []crdt.Pair{{Node: "a", Counter: 2}}},
		{OperationID: "mid", Priority: 8, Timestamp: base.Add(2 * time.Second), Clock: []crdt.Pair{{Node: "a", Counter: 3}}},
		{OperationID: "low-earlier", Priority: 5, Timestamp: base.Add(time.Second), Clock: []crdt.Pair{{Node: "b", Counter: 1}}},
		{OperationID: "high", Priority: 10, Timestamp: base, Clock: []crdt.Pair{{Node: "a", Counter: 1}}},
	}
	for _, e := range entries {
		_, err := store.QueueOperation(ctx, e)
		require.NoError(t, err)
	}

	for run := 0; run < 3; run++ {
		queue, err := store.GetQueue(ctx)
		require.NoError(t, err)
		require.Len(t, queue, 4)

		ops := []string{queue[0].OperationID, queue[1].OperationID, queue[2].OperationID, queue[3].OperationID}
		assert.Equal(t, []string{"high", "mid", "low-earlier", "low"}, ops,
			"replay order is deterministic across repeated reads")
	}
}

func TestRemoveFromQueue(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	id, err := store.QueueOperation(ctx, &models.QueueEntry{OperationID: "op-1"})
	require.NoError(t, err)

	require.NoError(t, store.RemoveFromQueue(ctx, id))

	queue, err := store.GetQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	assert.ErrorIs(t, store.RemoveFromQueue(ctx, id), storage.ErrQueueEntryNotFound)
}

func TestClearQueue(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.QueueOperation(ctx, &models.QueueEntry{OperationID: "op"})
		require.NoError(t, err)
	}

	require.NoError(t, store.ClearQueue(ctx))

	queue, err := store.GetQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}
