package cli

import (
	"bytes"
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

	"github.com/voxnote/tasksync/internal/client/broadcast"
	"github.com/voxnote/tasksync/internal/client/engine"
	"github.com/voxnote/tasksync/internal/client/metrics"
	"github.com/voxnote/tasksync/internal/client/notify"
	"github.com/voxnote/tasksync/internal/client/queue"
	"github.com/voxnote/tasksync/internal/client/render"
	"github.com/voxnote/tasksync/internal/client/storage/boltdb"
	"github.com/voxnote/tasksync/internal/crdt"
	"github.com/voxnote/tasksync/internal/models"
	"github.com/voxnote/tasksync/pkg/api"
)

// fakeTransport подтверждает мутации, выдавая создаваемым задачам
// последовательные серверные id
type fakeTransport struct {
	mu     sync.Mutex
	nextID int
	seen   map[string]bool
	tasks  map[string]api.TaskPayload
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		nextID: 100,
		seen:   make(map[string]bool),
		tasks:  make(map[string]api.TaskPayload),
	}
}

func (f *fakeTransport) IsConnected() bool { return true }

func (f *fakeTransport) OnStatusChange(fn func(connected bool)) func() {
	return func() {}
}

func (f *fakeTransport) EmitWithAck(_ context.Context, event string, payload, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var resp any
	switch event {
	case api.EventWorkspaceChecksum:
		resp = api.ChecksumResponse{ServerTime: time.Now()}
	default:
		var req api.MutationRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}

		mresp := api.MutationResponse{ServerTime: time.Now(), Duplicate: f.seen[req.OperationID]}
		f.seen[req.OperationID] = true

		if event == api.EventTaskCreate && !mresp.Duplicate {
			var input engine.CreateTaskInput
			if err := json.Unmarshal(req.Data, &input); err != nil {
				return err
			}
			task := api.TaskPayload{
				ID:        fmt.Sprintf("%d", f.nextID),
				Title:     input.Title,
				Status:    string(models.StatusTodo),
				Priority:  string(input.Priority),
				Labels:    input.Labels,
				Assignee:  input.Assignee,
				DueDate:   input.DueDate,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			f.nextID++
			f.tasks[task.ID] = task
			mresp.Task = &task
		}
		resp = mresp
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

func boltdbOpen(t *testing.T) *boltdb.Storage {
	t.Helper()

	store := boltdb.New(filepath.Join(t.TempDir(), "tasksync.db"), "test-node")
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func newTestCli(t *testing.T) (*Cli, *bytes.Buffer, engine.Service) {
	t.Helper()

	store := boltdbOpen(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := newFakeTransport()

	hub := broadcast.NewHub()
	bsync := broadcast.NewService(hub, "ws-1", logger)
	require.NoError(t, bsync.Start(context.Background()))

	qm := queue.NewManager(store, crdt.NewClockWithNodeID("test-node"), tr,
		metrics.NewCollector(), "ws-1", logger,
		queue.WithBackoff(func() retry.Backoff {
			return retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond))
		}))

	var out bytes.Buffer
	eng := engine.NewService(store, qm, tr, render.NewMemory(),
		notify.NewWriter(io.Discard, io.Discard), bsync,
		metrics.NewCollector(), "ws-1", logger)

	c := New(eng, store, qm, tr)
	c.SetOutput(&out)

	return c, &out, eng
}

func TestRunAddAndList(t *testing.T) {
	c, out, eng := newTestCli(t)
	ctx := context.Background()

	require.NoError(t, c.RunAdd(ctx, []string{"Send", "recap", "email", "--priority", "high", "--label", "followup"}))
	assert.Contains(t, out.String(), "Task created: Send recap email")
	eng.Wait()

	out.Reset()
	require.NoError(t, c.RunList(ctx, nil))
	assert.Contains(t, out.String(), "Found 1 task(s)")
	assert.Contains(t, out.String(), "Send recap email")
	assert.Contains(t, out.String(), "Priority: high")
	assert.Contains(t, out.String(), "followup")

	// Подтвержденная запись не несет оптимистичную отметку
	assert.NotContains(t, out.String(), "~ Send recap email")
}

func TestRunList_Filters(t *testing.T) {
	c, out, eng := newTestCli(t)
	ctx := context.Background()

	require.NoError(t, c.RunAdd(ctx, []string{"Prepare", "agenda"}))
	require.NoError(t, c.RunAdd(ctx, []string{"Review", "budget", "--priority", "high"}))
	eng.Wait()

	out.Reset()
	require.NoError(t, c.RunList(ctx, []string{"--priority", "high"}))
	assert.Contains(t, out.String(), "Review budget")
	assert.NotContains(t, out.String(), "Prepare agenda")

	out.Reset()
	require.NoError(t, c.RunList(ctx, []string{"--search", "agenda"}))
	assert.Contains(t, out.String(), "Prepare agenda")
	assert.NotContains(t, out.String(), "Review budget")

	// Последние фильтры сохраняются в view state
	raw, err := c.store.GetViewState(ctx, "filters")
	require.NoError(t, err)

	var saved models.TaskFilters
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, "agenda", saved.Search)
}

func TestRunGet(t *testing.T) {
	c, out, eng := newTestCli(t)
	ctx := context.Background()

	require.NoError(t, c.RunAdd(ctx, []string{"Inspect", "details"}))
	eng.Wait()

	out.Reset()
	require.NoError(t, c.RunGet(ctx, []string{"100"}))
	assert.Contains(t, out.String(), "Title:    Inspect details")
	assert.Contains(t, out.String(), "ID:       100")
	assert.Contains(t, out.String(), "Status:   todo")

	assert.Error(t, c.RunGet(ctx, []string{"missing"}))
	assert.Error(t, c.RunGet(ctx, nil))
}

func TestRunDoneAndLabel(t *testing.T) {
	c, out, eng := newTestCli(t)
	ctx := context.Background()

	require.NoError(t, c.RunAdd(ctx, []string{"Toggle", "me"}))
	eng.Wait()

	out.Reset()
	require.NoError(t, c.RunDone(ctx, []string{"100"}))
	eng.Wait()
	assert.Contains(t, out.String(), "Task 100 is now in_progress")

	out.Reset()
	require.NoError(t, c.RunLabel(ctx, []string{"100", "+urgent"}))
	eng.Wait()
	assert.Contains(t, out.String(), "Task 100 labels: urgent")

	out.Reset()
	require.NoError(t, c.RunLabel(ctx, []string{"100", "-urgent"}))
	eng.Wait()
	assert.Contains(t, out.String(), "Task 100 has no labels")

	assert.Error(t, c.RunLabel(ctx, []string{"100", "urgent"}))
}

func TestRunDelete(t *testing.T) {
	c, out, eng := newTestCli(t)
	ctx := context.Background()

	require.NoError(t, c.RunAdd(ctx, []string{"Ephemeral"}))
	eng.Wait()

	out.Reset()
	require.NoError(t, c.RunDelete(ctx, []string{"100"}))
	eng.Wait()
	assert.Contains(t, out.String(), "Task 100 deleted")

	assert.Error(t, c.RunGet(ctx, []string{"100"}))
}

func TestRunStatus(t *testing.T) {
	c, out, eng := newTestCli(t)
	ctx := context.Background()

	require.NoError(t, c.RunAdd(ctx, []string{"Count", "me"}))
	eng.Wait()

	out.Reset()
	require.NoError(t, c.RunStatus(ctx))
	assert.Contains(t, out.String(), "Connected:        yes")
	assert.Contains(t, out.String(), "Tasks:            1")
	assert.Contains(t, out.String(), "Queued mutations: 0")
}

func TestRunSync(t *testing.T) {
	c, out, eng := newTestCli(t)
	ctx := context.Background()

	require.NoError(t, c.RunAdd(ctx, []string{"Queued", "item"}))
	eng.Wait()

	out.Reset()
	require.NoError(t, c.RunSync(ctx))
	assert.Contains(t, out.String(), "Sync finished")
}

func TestRunCompact_Empty(t *testing.T) {
	c, out, _ := newTestCli(t)
	ctx := context.Background()

	require.NoError(t, c.RunCompact(ctx, nil))
	assert.Contains(t, out.String(), "Nothing to compact")

	assert.Error(t, c.RunCompact(ctx, []string{"not-a-number"}))
}
