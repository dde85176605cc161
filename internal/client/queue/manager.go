package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/voxnote/tasksync/internal/client/broadcast"
	"github.com/voxnote/tasksync/internal/client/metrics"
	"github.com/voxnote/tasksync/internal/client/render"
	"github.com/voxnote/tasksync/internal/client/storage"
	"github.com/voxnote/tasksync/internal/client/transport"
	"github.com/voxnote/tasksync/internal/crdt"
	"github.com/voxnote/tasksync/internal/models"
	"github.com/voxnote/tasksync/pkg/api"
)

//go:generate moq -out manager_mock.go . Manager

// Manager определяет интерфейс для offline-очереди мутаций
type Manager interface {
	// Enqueue persists a mutation for later delivery.
	// Stamps a fresh vector clock tick. The operation id stays stable
	// across retries so the server can deduplicate; an empty id gets a
	// generated one.
	Enqueue(ctx context.Context, operationID string, op models.Operation, priority int, eventID uint64) (*models.QueueEntry, error)

	// Replay drains the queue in deterministic replay order.
	// Stops at the first entry that keeps failing on the network so the
	// order is preserved; explicit server rejections are dropped.
	Replay(ctx context.Context) (*ReplayResult, error)

	// PendingCount возвращает число операций, ожидающих доставки
	PendingCount(ctx context.Context) (int, error)

	// WatchConnectivity replays the queue whenever the transport
	// reports the connection coming back. Returns a stop function.
	WatchConnectivity(ctx context.Context) (stop func())
}

// ReplayResult contains queue replay outcome counts
type ReplayResult struct {
	Replayed   int // доставлено и подтверждено
	Duplicates int // подтверждено как уже применённые (повторная доставка)
	Rejected   int // отвергнуто сервером и удалено из очереди
	Remaining  int // осталось в очереди после остановки
}

const (
	replayBackoffBase = 500 * time.Millisecond
	replayMaxRetries  = 5
)

type manager struct {
	store       storage.Storage
	clock       *crdt.Clock
	transport   transport.Transport
	metrics     *metrics.Collector
	renderer    render.Renderer
	broadcast   *broadcast.Service
	logger      *slog.Logger
	backoff     func() retry.Backoff
	workspaceID string

	// replayMu исключает параллельные воспроизведения очереди
	replayMu sync.Mutex
}

// Option настраивает queue manager
type Option func(*manager)

// WithBackoff подменяет стратегию повторов доставки.
// Фабрика вызывается для каждой записи: backoff хранит состояние.
func WithBackoff(factory func() retry.Backoff) Option {
	return func(m *manager) {
		m.backoff = factory
	}
}

// WithRenderer подключает отображение: подтвержденные при
// воспроизведении записи сразу попадают на экран
func WithRenderer(r render.Renderer) Option {
	return func(m *manager) {
		m.renderer = r
	}
}

// WithBroadcast подключает межвкладочную шину для объявлений о
// подтвержденных при воспроизведении записях
func WithBroadcast(b *broadcast.Service) Option {
	return func(m *manager) {
		m.broadcast = b
	}
}

// NewManager creates a new queue manager
func NewManager(
	store storage.Storage,
	clock *crdt.Clock,
	tr transport.Transport,
	collector *metrics.Collector,
	workspaceID string,
	logger *slog.Logger,
	opts ...Option,
) Manager {
	m := &manager{
		store:       store,
		clock:       clock,
		transport:   tr,
		metrics:     collector,
		workspaceID: workspaceID,
		logger:      logger,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(replayMaxRetries, retry.NewExponential(replayBackoffBase))
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *manager) Enqueue(ctx context.Context, operationID string, op models.Operation, priority int, eventID uint64) (*models.QueueEntry, error) {
	if operationID == "" {
		operationID = uuid.New().String()
	}

	entry := &models.QueueEntry{
		Timestamp:   time.Now(),
		OperationID: operationID,
		Op:          op,
		Clock:       m.clock.Tick(),
		EventID:     eventID,
		Priority:    priority,
	}

	id, err := m.store.QueueOperation(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to queue operation: %w", err)
	}
	entry.ID = id

	m.logger.Debug("operation queued",
		"operation_id", entry.OperationID,
		"type", op.Type,
		"priority", priority)

	return entry, nil
}

// Replay performs queue replay
// 1. Reads the queue in replay order
// 2. Delivers each entry with bounded exponential backoff
// 3. Removes confirmed entries and marks their events synced
func (m *manager) Replay(ctx context.Context) (*ReplayResult, error) {
	m.replayMu.Lock()
	defer m.replayMu.Unlock()

	entries, err := m.store.GetQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}

	result := &ReplayResult{Remaining: len(entries)}
	if len(entries) == 0 {
		return result, nil
	}

	m.logger.Info("replaying offline queue", "entries", len(entries))

	for _, entry := range entries {
		resp, err := m.deliver(ctx, entry)
		if err != nil {
			var serverErr *transport.ServerError
			if errors.As(err, &serverErr) {
				// Сервер отверг операцию: повтор не поможет,
				// запись удаляется, очередь продолжается
				m.logger.Warn("queued operation rejected",
					"operation_id", entry.OperationID,
					"error", serverErr.Message)
				m.metrics.ReconcileFailed()

				if removeErr := m.store.RemoveFromQueue(ctx, entry.ID); removeErr != nil {
					return result, fmt.Errorf("failed to remove rejected entry: %w", removeErr)
				}
				result.Rejected++
				result.Remaining--
				continue
			}

			// Сетевая ошибка после всех повторов: останавливаемся,
			// чтобы сохранить порядок воспроизведения
			m.logger.Warn("replay stopped on network failure",
				"operation_id", entry.OperationID,
				"error", err)
			return result, nil
		}

		if err := m.confirm(ctx, entry, resp); err != nil {
			return result, err
		}

		if resp.Duplicate {
			result.Duplicates++
		} else {
			result.Replayed++
		}
		result.Remaining--
	}

	if err := m.store.SaveLastSyncTime(ctx, time.Now()); err != nil {
		return result, fmt.Errorf("failed to save last sync time: %w", err)
	}

	m.logger.Info("queue replay finished",
		"replayed", result.Replayed,
		"duplicates", result.Duplicates,
		"rejected", result.Rejected,
		"remaining", result.Remaining)

	return result, nil
}

// deliver отправляет одну запись с ограниченным экспоненциальным backoff.
// Возвращает подтверждение сервера.
func (m *manager) deliver(ctx context.Context, entry *models.QueueEntry) (*api.MutationResponse, error) {
	req := api.MutationRequest{
		OperationID: entry.OperationID,
		WorkspaceID: m.workspaceID,
		Type:        string(entry.Op.Type),
		TaskID:      entry.Op.TaskID,
		Data:        entry.Op.Data,
	}

	var resp api.MutationResponse

	err := retry.Do(ctx, m.backoff(), func(ctx context.Context) error {
		m.metrics.ReplayAttempted()

		start := time.Now()
		if err := m.transport.EmitWithAck(ctx, eventFor(entry.Op.Type), req, &resp); err != nil {
			var serverErr *transport.ServerError
			if errors.As(err, &serverErr) {
				// Отказ сервера окончателен
				return err
			}
			return retry.RetryableError(err)
		}
		m.metrics.ReconcileSucceeded(time.Since(start))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// confirm фиксирует серверную правду локально, удаляет подтвержденную
// запись и помечает ее событие synced. Подтвержденная при
// воспроизведении запись сохраняется в хранилище: create, откаченный
// в offline, материализуется под серверным id именно здесь.
func (m *manager) confirm(ctx context.Context, entry *models.QueueEntry, resp *api.MutationResponse) error {
	if resp.Task != nil {
		task := models.TaskFromPayload(resp.Task)
		if err := m.store.SaveTask(ctx, task); err != nil {
			return fmt.Errorf("failed to save confirmed record: %w", err)
		}

		if m.renderer != nil {
			if err := m.renderer.RenderRecord(task); err != nil {
				m.logger.Warn("failed to render confirmed record",
					"task_id", task.ID, "error", err)
			}
		}
		if m.broadcast != nil {
			if err := m.broadcast.NotifyTaskUpdate(ctx, task.ID); err != nil {
				m.logger.Warn("broadcast failed, continuing local-only", "error", err)
			}
		}
	}

	if err := m.store.RemoveFromQueue(ctx, entry.ID); err != nil {
		return fmt.Errorf("failed to remove confirmed entry: %w", err)
	}

	if entry.EventID != 0 {
		if err := m.store.MarkEventSynced(ctx, entry.EventID); err != nil {
			// Событие могло быть скомпактировано между записями
			if !errors.Is(err, storage.ErrEventNotFound) {
				return fmt.Errorf("failed to mark event synced: %w", err)
			}
		}
	}

	return nil
}

func (m *manager) PendingCount(ctx context.Context) (int, error) {
	entries, err := m.store.GetQueue(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read queue: %w", err)
	}

	return len(entries), nil
}

func (m *manager) WatchConnectivity(ctx context.Context) func() {
	return m.transport.OnStatusChange(func(connected bool) {
		if !connected {
			return
		}

		m.logger.Info("connection restored, replaying queue")
		if _, err := m.Replay(ctx); err != nil {
			m.logger.Error("queue replay failed", "error", err)
		}
	})
}

// eventFor отображает тип операции в имя серверного события
func eventFor(op models.OperationType) string {
	switch op {
	case models.OpCreate:
		return api.EventTaskCreate
	case models.OpUpdate:
		return api.EventTaskUpdate
	case models.OpDelete:
		return api.EventTaskDelete
	}

	return api.EventTaskUpdate
}
