package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxnote/tasksync/internal/client/metrics"
	"github.com/voxnote/tasksync/internal/client/render"
	"github.com/voxnote/tasksync/internal/client/storage/boltdb"
	"github.com/voxnote/tasksync/internal/client/transport"
	"github.com/voxnote/tasksync/internal/crdt"
	"github.com/voxnote/tasksync/internal/models"
	"github.com/voxnote/tasksync/pkg/api"
)

// fakeTransport изображает сервер с дедупликацией по operation id
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	listeners []func(connected bool)
	seen      map[string]bool
	delivered []string
	failOn    map[string]error
	tasks     map[string]*api.TaskPayload
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		connected: true,
		seen:      make(map[string]bool),
		failOn:    make(map[string]error),
		tasks:     make(map[string]*api.TaskPayload),
	}
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) OnStatusChange(fn func(connected bool)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeTransport) setConnected(connected bool) {
	f.mu.Lock()
	f.connected = connected
	listeners := append([]func(bool){}, f.listeners...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(connected)
	}
}

func (f *fakeTransport) EmitWithAck(_ context.Context, _ string, payload, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var req api.MutationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failOn[req.OperationID]; ok {
		return err
	}

	resp := api.MutationResponse{ServerTime: time.Now()}
	if f.seen[req.OperationID] {
		// Повторная доставка: операция уже применена
		resp.Duplicate = true
	} else {
		f.seen[req.OperationID] = true
		f.delivered = append(f.delivered, req.OperationID)
	}
	if task, ok := f.tasks[req.OperationID]; ok {
		resp.Task = task
	}

	if result != nil {
		ack, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		return json.Unmarshal(ack, result)
	}

	return nil
}

func (f *fakeTransport) deliveredOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.delivered...)
}

func newTestManager(t *testing.T, tr transport.Transport, opts ...Option) (Manager, *boltdb.Storage) {
	t.Helper()

	store := boltdb.New(filepath.Join(t.TempDir(), "tasksync.db"), "test-node")
	t.Cleanup(func() {
		_ = store.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{
		WithBackoff(func() retry.Backoff {
			return retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond))
		}),
	}, opts...)
	m := NewManager(store, crdt.NewClockWithNodeID("test-node"), tr,
		metrics.NewCollector(), "ws-1", logger, opts...)

	return m, store
}

func TestEnqueue_StampsClockAndOperationID(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(t, tr)
	ctx := context.Background()

	first, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpCreate}, 10, 0)
	require.NoError(t, err)
	second, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpUpdate, TaskID: "1"}, 5, 0)
	require.NoError(t, err)

	assert.NotEmpty(t, first.OperationID)
	assert.NotEqual(t, first.OperationID, second.OperationID)

	// Часы продвигаются с каждой операцией
	require.Equal(t, crdt.Less, crdt.FromPairs(first.Clock).Compare(crdt.FromPairs(second.Clock)))
}

func TestReplay_DrainsQueueInOrder(t *testing.T) {
	tr := newFakeTransport()
	m, store := newTestManager(t, tr)
	ctx := context.Background()

	del, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpDelete, TaskID: "9"}, 8, 0)
	require.NoError(t, err)
	upd, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpUpdate, TaskID: "1"}, 5, 0)
	require.NoError(t, err)
	crt, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpCreate}, 10, 0)
	require.NoError(t, err)

	result, err := m.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Replayed)
	assert.Equal(t, 0, result.Remaining)

	// create(10) раньше delete(8) раньше update(5)
	assert.Equal(t, []string{crt.OperationID, del.OperationID, upd.OperationID}, tr.deliveredOps())

	count, err := m.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	ts, err := store.GetLastSyncTime(ctx)
	require.NoError(t, err)
	assert.False(t, ts.IsZero())
}

func TestReplay_MarksEventSynced(t *testing.T) {
	tr := newFakeTransport()
	m, store := newTestManager(t, tr)
	ctx := context.Background()

	eventID, err := store.AddEvent(ctx, &models.Event{
		Type:   models.EventTaskCreated,
		TaskID: "1",
	})
	require.NoError(t, err)

	_, err = m.Enqueue(ctx, "", models.Operation{Type: models.OpCreate}, 10, eventID)
	require.NoError(t, err)

	_, err = m.Replay(ctx)
	require.NoError(t, err)

	event, err := store.GetEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSynced, event.SyncStatus)
	require.NotNil(t, event.SyncedAt)
}

func TestReplay_DuplicateAckIsSuccess(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(t, tr)
	ctx := context.Background()

	entry, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpCreate}, 10, 0)
	require.NoError(t, err)

	// Сервер уже применял эту операцию: подтверждение потерялось
	tr.mu.Lock()
	tr.seen[entry.OperationID] = true
	tr.mu.Unlock()

	result, err := m.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Replayed)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 0, result.Remaining)

	count, err := m.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "duplicate ack removes the entry")
}

func TestReplay_NetworkFailureStopsAndKeepsOrder(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(t, tr)
	ctx := context.Background()

	crt, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpCreate}, 10, 0)
	require.NoError(t, err)
	del, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpDelete, TaskID: "9"}, 8, 0)
	require.NoError(t, err)
	_, err = m.Enqueue(ctx, "", models.Operation{Type: models.OpUpdate, TaskID: "1"}, 5, 0)
	require.NoError(t, err)

	tr.mu.Lock()
	tr.failOn[del.OperationID] = fmt.Errorf("connection reset")
	tr.mu.Unlock()

	result, err := m.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Replayed)
	assert.Equal(t, 2, result.Remaining, "failed entry and its successors stay queued")
	assert.Equal(t, []string{crt.OperationID}, tr.deliveredOps())

	// Связь вернулась: добиваем хвост
	tr.mu.Lock()
	delete(tr.failOn, del.OperationID)
	tr.mu.Unlock()

	result, err = m.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Replayed)
	assert.Equal(t, 0, result.Remaining)
}

func TestReplay_ServerRejectionDropsEntry(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(t, tr)
	ctx := context.Background()

	bad, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpCreate}, 10, 0)
	require.NoError(t, err)
	good, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpUpdate, TaskID: "1"}, 5, 0)
	require.NoError(t, err)

	tr.mu.Lock()
	tr.failOn[bad.OperationID] = &transport.ServerError{Code: 422, Message: "title required"}
	tr.mu.Unlock()

	result, err := m.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, 1, result.Replayed)
	assert.Equal(t, 0, result.Remaining, "rejection does not block the queue")
	assert.Equal(t, []string{good.OperationID}, tr.deliveredOps())
}

func TestReplay_MaterializesServerRecord(t *testing.T) {
	tr := newFakeTransport()
	renderer := render.NewMemory()
	m, store := newTestManager(t, tr, WithRenderer(renderer))
	ctx := context.Background()

	// Create был откачен в offline: локальной записи больше нет,
	// в очереди осталась только мутация
	data, err := json.Marshal(map[string]string{"title": "Recovered"})
	require.NoError(t, err)
	entry, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpCreate, Data: data}, 10, 0)
	require.NoError(t, err)

	tr.mu.Lock()
	tr.tasks[entry.OperationID] = &api.TaskPayload{
		ID:        "42",
		Title:     "Recovered",
		Status:    string(models.StatusTodo),
		Priority:  string(models.PriorityMedium),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	tr.mu.Unlock()

	result, err := m.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Replayed)

	// Серверная запись материализовалась под серверным id
	task, err := store.GetTask(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Recovered", task.Title)
	assert.False(t, task.Optimistic)

	rendered, ok := renderer.Rendered("42")
	require.True(t, ok)
	assert.Equal(t, "Recovered", rendered.Title)
}

func TestWatchConnectivity_ReplaysOnReconnect(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(t, tr)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "", models.Operation{Type: models.OpCreate}, 10, 0)
	require.NoError(t, err)

	stop := m.WatchConnectivity(ctx)
	defer stop()

	tr.setConnected(false)
	count, err := m.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "nothing replays while offline")

	tr.setConnected(true)

	count, err = m.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "reconnect triggers replay")
}
