package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxnote/tasksync/internal/client/broadcast"
	"github.com/voxnote/tasksync/internal/client/metrics"
	"github.com/voxnote/tasksync/internal/client/notify"
	"github.com/voxnote/tasksync/internal/client/queue"
	"github.com/voxnote/tasksync/internal/client/render"
	"github.com/voxnote/tasksync/internal/client/scheduler"
	"github.com/voxnote/tasksync/internal/client/storage"
	"github.com/voxnote/tasksync/internal/client/transport"
	"github.com/voxnote/tasksync/internal/models"
	"github.com/voxnote/tasksync/internal/validation"
	"github.com/voxnote/tasksync/pkg/api"
)

// Mutation priorities: creates and deletes change set membership, so
// they outrank plain edits during queue replay
const (
	PriorityCreate = 10
	PriorityDelete = 8
	PriorityUpdate = 5
)

// syncTimeout ограничивает одну попытку доставки на сервер.
// Таймаут считается неудачей, никогда тихим успехом.
const syncTimeout = 10 * time.Second

//go:generate moq -out engine_mock.go . Service

// Service определяет интерфейс для движка оптимистичных мутаций
type Service interface {
	// CreateTask applies a new task optimistically and reconciles it
	// with the server. Returns the optimistic record with a temp id.
	CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error)

	// UpdateTask applies field updates optimistically.
	// Fails fast with ErrTaskNotFound before any optimistic write.
	UpdateTask(ctx context.Context, id string, updates UpdateTaskInput) (*models.Task, error)

	// DeleteTask removes a task optimistically
	DeleteTask(ctx context.Context, id string) error

	// Derived helpers, all routed through UpdateTask
	ToggleStatus(ctx context.Context, id string) (*models.Task, error)
	Snooze(ctx context.Context, id string, until time.Time) (*models.Task, error)
	UpdatePriority(ctx context.Context, id string, priority models.TaskPriority) (*models.Task, error)
	AddLabel(ctx context.Context, id string, label string) (*models.Task, error)
	RemoveLabel(ctx context.Context, id string, label string) (*models.Task, error)

	// Query API: reads go straight to the durable store
	GetTask(ctx context.Context, id string) (*models.Task, error)
	GetAllTasks(ctx context.Context) ([]*models.Task, error)
	GetFilteredTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error)

	// CheckDrift compares a local state checksum against the server's.
	// A mismatch is a soft signal: other tabs are told to re-fetch.
	CheckDrift(ctx context.Context) (bool, error)

	// PendingOperations возвращает число операций между оптимистичным
	// применением и исходом сверки
	PendingOperations() int

	// Wait blocks until every in-flight reconciliation has finished
	Wait()
}

// CreateTaskInput is the clean input of a create mutation
type CreateTaskInput struct {
	DueDate     *time.Time          `json:"due_date,omitempty"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Priority    models.TaskPriority `json:"priority,omitempty"`
	Assignee    string              `json:"assignee,omitempty"`
	Labels      []string            `json:"labels,omitempty"`
}

// UpdateTaskInput is the clean input of an update mutation.
// Nil pointer means the field is left untouched.
type UpdateTaskInput struct {
	Title        *string              `json:"title,omitempty"`
	Description  *string              `json:"description,omitempty"`
	Status       *models.TaskStatus   `json:"status,omitempty"`
	Priority     *models.TaskPriority `json:"priority,omitempty"`
	Assignee     *string              `json:"assignee,omitempty"`
	Labels       *[]string            `json:"labels,omitempty"`
	DueDate      *time.Time           `json:"due_date,omitempty"`
	SnoozedUntil *time.Time           `json:"snoozed_until,omitempty"`
}

// pendingOp tracks one mutation between optimistic apply and its
// reconciliation outcome. Never persisted: after a reload the durable
// queue and event log rebuild delivery state.
type pendingOp struct {
	snapshot  *models.Task // состояние до мутации, nil для create
	operation models.Operation
	id        string // operation id
	targetID  string // temp или серверный id
	queueID   uint64
	eventID   uint64
}

type service struct {
	store       storage.Storage
	queue       queue.Manager
	transport   transport.Transport
	renderer    render.Renderer
	notifier    notify.Notifier
	broadcast   *broadcast.Service
	metrics     *metrics.Collector
	scheduler   *scheduler.Scheduler
	logger      *slog.Logger
	workspaceID string

	mu      sync.Mutex
	pending map[string]*pendingOp

	// wg отслеживает фоновые сверки, Wait делает тесты детерминированными
	wg sync.WaitGroup
}

// Option настраивает движок
type Option func(*service)

// WithScheduler подключает планировщик для пробуждения отложенных
// задач: по истечении snoozed_until запись перерисовывается
func WithScheduler(sched *scheduler.Scheduler) Option {
	return func(s *service) {
		s.scheduler = sched
	}
}

// NewService creates a new optimistic mutation engine
func NewService(
	store storage.Storage,
	queueManager queue.Manager,
	tr transport.Transport,
	renderer render.Renderer,
	notifier notify.Notifier,
	bsync *broadcast.Service,
	collector *metrics.Collector,
	workspaceID string,
	logger *slog.Logger,
	opts ...Option,
) Service {
	s := &service{
		store:       store,
		queue:       queueManager,
		transport:   tr,
		renderer:    renderer,
		notifier:    notifier,
		broadcast:   bsync,
		metrics:     collector,
		workspaceID: workspaceID,
		logger:      logger,
		pending:     make(map[string]*pendingOp),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateTask performs the four-step optimistic protocol
// 1. Applies the record to the view under a temp id
// 2. Persists the optimistic record and appends a task_created event
// 3. Queues the mutation for delivery
// 4. Reconciles with the server in the background
func (s *service) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	if input.Priority == "" {
		input.Priority = models.PriorityMedium
	}

	operationID := uuid.New().String()
	task := &models.Task{
		ID:          models.NewTempID(),
		Title:       input.Title,
		Description: input.Description,
		Status:      models.StatusTodo,
		Priority:    input.Priority,
		Assignee:    input.Assignee,
		Labels:      input.Labels,
		DueDate:     input.DueDate,
		Optimistic:  true,
		OperationID: operationID,
	}

	if err := validation.ValidateTask(task); err != nil {
		return nil, err
	}

	cleanData, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create input: %w", err)
	}

	// Шаг 1: применяем к отображению
	if err := s.renderer.RenderRecord(task); err != nil {
		return nil, fmt.Errorf("failed to render optimistic record: %w", err)
	}

	// Шаг 2: сохраняем оптимистичную запись и событие
	if err := s.store.SaveTask(ctx, task); err != nil {
		_ = s.renderer.RemoveRecord(task.ID)
		return nil, fmt.Errorf("failed to persist optimistic record: %w", err)
	}

	eventID, err := s.store.AddEvent(ctx, &models.Event{
		Type:    models.EventTaskCreated,
		TaskID:  task.ID,
		Payload: cleanData,
	})
	if err != nil {
		// Без события запись осталась бы в хранилище навсегда
		// оптимистичной и никогда не доставленной
		s.undoCreate(ctx, task.ID)
		return nil, fmt.Errorf("failed to append create event: %w", err)
	}

	// Шаг 3: ставим в очередь доставки
	op := models.Operation{Type: models.OpCreate, Data: cleanData}
	entry, err := s.queue.Enqueue(ctx, operationID, op, PriorityCreate, eventID)
	if err != nil {
		s.undoCreate(ctx, task.ID)
		return nil, fmt.Errorf("failed to queue create: %w", err)
	}

	s.trackPending(&pendingOp{
		id:        operationID,
		operation: op,
		targetID:  task.ID,
		queueID:   entry.ID,
		eventID:   eventID,
	})

	// Шаг 4: фоновая сверка с сервером
	s.reconcileAsync(operationID)

	return task, nil
}

func (s *service) UpdateTask(ctx context.Context, id string, updates UpdateTaskInput) (*models.Task, error) {
	// Несуществующая задача отклоняется до любых оптимистичных записей
	existing, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}

	snapshot := existing.Clone()
	operationID := uuid.New().String()

	task := existing.Clone()
	applyUpdates(task, updates)
	task.Optimistic = true
	task.OperationID = operationID

	if err := validation.ValidateTask(task); err != nil {
		return nil, err
	}

	cleanData, err := json.Marshal(updates)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal update input: %w", err)
	}

	if err := s.renderer.RenderRecord(task); err != nil {
		return nil, fmt.Errorf("failed to render optimistic record: %w", err)
	}

	if err := s.store.SaveTask(ctx, task); err != nil {
		// Отображение уже изменилось: возвращаем прежнее состояние
		_ = s.renderer.RenderRecord(snapshot)
		return nil, fmt.Errorf("failed to persist optimistic record: %w", err)
	}

	eventID, err := s.store.AddEvent(ctx, &models.Event{
		Type:    models.EventTaskUpdated,
		TaskID:  id,
		Payload: cleanData,
	})
	if err != nil {
		s.undoToSnapshot(ctx, snapshot)
		return nil, fmt.Errorf("failed to append update event: %w", err)
	}

	op := models.Operation{Type: models.OpUpdate, TaskID: id, Data: cleanData}
	entry, err := s.queue.Enqueue(ctx, operationID, op, PriorityUpdate, eventID)
	if err != nil {
		s.undoToSnapshot(ctx, snapshot)
		return nil, fmt.Errorf("failed to queue update: %w", err)
	}

	s.trackPending(&pendingOp{
		id:        operationID,
		operation: op,
		targetID:  id,
		snapshot:  snapshot,
		queueID:   entry.ID,
		eventID:   eventID,
	})

	s.reconcileAsync(operationID)

	return task, nil
}

func (s *service) DeleteTask(ctx context.Context, id string) error {
	existing, err := s.store.GetTask(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load task %s: %w", id, err)
	}

	snapshot := existing.Clone()
	operationID := uuid.New().String()

	if err := s.renderer.RemoveRecord(id); err != nil {
		return fmt.Errorf("failed to remove rendered record: %w", err)
	}

	if err := s.store.DeleteTask(ctx, id); err != nil {
		_ = s.renderer.RenderRecord(snapshot)
		return fmt.Errorf("failed to delete task: %w", err)
	}

	eventID, err := s.store.AddEvent(ctx, &models.Event{
		Type:   models.EventTaskDeleted,
		TaskID: id,
	})
	if err != nil {
		s.undoToSnapshot(ctx, snapshot)
		return fmt.Errorf("failed to append delete event: %w", err)
	}

	op := models.Operation{Type: models.OpDelete, TaskID: id}
	entry, err := s.queue.Enqueue(ctx, operationID, op, PriorityDelete, eventID)
	if err != nil {
		s.undoToSnapshot(ctx, snapshot)
		return fmt.Errorf("failed to queue delete: %w", err)
	}

	s.trackPending(&pendingOp{
		id:        operationID,
		operation: op,
		targetID:  id,
		snapshot:  snapshot,
		queueID:   entry.ID,
		eventID:   eventID,
	})

	s.reconcileAsync(operationID)

	return nil
}

func (s *service) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return s.store.GetTask(ctx, id)
}

func (s *service) GetAllTasks(ctx context.Context) ([]*models.Task, error) {
	return s.store.GetAllTasks(ctx)
}

func (s *service) GetFilteredTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error) {
	return s.store.GetFilteredTasks(ctx, filters)
}

func (s *service) PendingOperations() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}

func (s *service) Wait() {
	s.wg.Wait()
}

func (s *service) trackPending(op *pendingOp) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[op.id] = op
}

func (s *service) takePending(operationID string) *pendingOp {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := s.pending[operationID]
	delete(s.pending, operationID)

	return op
}

// reconcileAsync запускает сверку операции в фоне.
// Сверка работает на собственном контексте: отмена вызвавшего запроса
// не должна обрывать доставку уже применённой мутации.
func (s *service) reconcileAsync(operationID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		s.reconcile(ctx, operationID)
	}()
}

// reconcile performs step 4 of the optimistic protocol
// Success: merge server truth, free the queue entry, notify other tabs.
// Failure: restore the snapshot; the queue entry stays for replay.
func (s *service) reconcile(ctx context.Context, operationID string) {
	op := s.takePending(operationID)
	if op == nil {
		return
	}

	if !s.transport.IsConnected() {
		s.rollback(ctx, op)
		s.notifier.Info("offline: %s queued for delivery", op.operation.Type)
		return
	}

	req := api.MutationRequest{
		OperationID: op.id,
		WorkspaceID: s.workspaceID,
		Type:        string(op.operation.Type),
		TaskID:      op.operation.TaskID,
		Data:        op.operation.Data,
	}

	var resp api.MutationResponse
	start := time.Now()
	if err := s.transport.EmitWithAck(ctx, eventFor(op.operation.Type), req, &resp); err != nil {
		s.metrics.ReconcileFailed()
		s.rollback(ctx, op)
		s.notifier.Error("%s was not saved: %v", op.operation.Type, err)
		return
	}
	s.metrics.ReconcileSucceeded(time.Since(start))

	if err := s.confirm(ctx, op, &resp); err != nil {
		s.logger.Error("failed to apply server confirmation",
			"operation_id", op.id, "error", err)
	}
}

// confirm replaces optimistic state with the server's record
func (s *service) confirm(ctx context.Context, op *pendingOp, resp *api.MutationResponse) error {
	switch op.operation.Type {
	case models.OpCreate:
		if resp.Task == nil {
			return fmt.Errorf("create confirmation carries no task")
		}

		confirmed := models.TaskFromPayload(resp.Task)

		// Меняем временный id на серверный
		if err := s.store.DeleteTask(ctx, op.targetID); err != nil {
			return fmt.Errorf("failed to drop temp record: %w", err)
		}
		if err := s.store.SaveTask(ctx, confirmed); err != nil {
			return fmt.Errorf("failed to save confirmed record: %w", err)
		}
		if err := s.renderer.SwapRecordID(op.targetID, confirmed.ID); err != nil {
			return err
		}
		if err := s.renderer.RenderRecord(confirmed); err != nil {
			return err
		}

	case models.OpUpdate:
		var confirmed *models.Task
		if resp.Task != nil {
			confirmed = models.TaskFromPayload(resp.Task)
		} else {
			stored, err := s.store.GetTask(ctx, op.targetID)
			if err != nil {
				return fmt.Errorf("failed to load task for confirmation: %w", err)
			}
			confirmed = stored
			confirmed.Optimistic = false
			confirmed.OperationID = ""
		}

		if err := s.store.SaveTask(ctx, confirmed); err != nil {
			return fmt.Errorf("failed to save confirmed record: %w", err)
		}
		if err := s.renderer.RenderRecord(confirmed); err != nil {
			return err
		}

	case models.OpDelete:
		// Локальное состояние уже удалено
	}

	if err := s.store.RemoveFromQueue(ctx, op.queueID); err != nil {
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}
	if err := s.store.MarkEventSynced(ctx, op.eventID); err != nil {
		return fmt.Errorf("failed to mark event synced: %w", err)
	}

	s.announce(ctx, op)

	return nil
}

// undoCreate снимает оптимистичную запись, когда шаг персистентности
// после применения к отображению не удался
func (s *service) undoCreate(ctx context.Context, id string) {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		s.logger.Error("undo: failed to drop optimistic record",
			"task_id", id, "error", err)
	}
	if err := s.renderer.RemoveRecord(id); err != nil {
		s.logger.Error("undo: failed to remove rendered record",
			"task_id", id, "error", err)
	}
}

// undoToSnapshot возвращает хранилище и отображение к снимку
func (s *service) undoToSnapshot(ctx context.Context, snapshot *models.Task) {
	if err := s.store.SaveTask(ctx, snapshot); err != nil {
		s.logger.Error("undo: failed to restore snapshot",
			"task_id", snapshot.ID, "error", err)
	}
	if err := s.renderer.RenderRecord(snapshot); err != nil {
		s.logger.Error("undo: failed to re-render snapshot",
			"task_id", snapshot.ID, "error", err)
	}
}

// rollback restores the pre-mutation snapshot in both the store and the
// view. The queue entry is deliberately kept: giving up on this attempt
// is not giving up on the data.
func (s *service) rollback(ctx context.Context, op *pendingOp) {
	s.metrics.RollbackApplied()

	switch op.operation.Type {
	case models.OpCreate:
		if err := s.store.DeleteTask(ctx, op.targetID); err != nil {
			s.logger.Error("rollback: failed to drop optimistic record",
				"task_id", op.targetID, "error", err)
		}
		if err := s.renderer.RemoveRecord(op.targetID); err != nil {
			s.logger.Error("rollback: failed to remove rendered record",
				"task_id", op.targetID, "error", err)
		}

	case models.OpUpdate, models.OpDelete:
		if op.snapshot == nil {
			return
		}
		if err := s.store.SaveTask(ctx, op.snapshot); err != nil {
			s.logger.Error("rollback: failed to restore snapshot",
				"task_id", op.targetID, "error", err)
		}
		if err := s.renderer.RenderRecord(op.snapshot); err != nil {
			s.logger.Error("rollback: failed to re-render snapshot",
				"task_id", op.targetID, "error", err)
		}
	}
}

// announce сообщает другим вкладкам об изменении.
// Ошибки шины не влияют на корректность: журналируем и продолжаем.
func (s *service) announce(ctx context.Context, op *pendingOp) {
	if s.broadcast == nil {
		return
	}

	var err error
	switch op.operation.Type {
	case models.OpDelete:
		err = s.broadcast.NotifyTaskArchive(ctx, op.targetID)
	default:
		err = s.broadcast.NotifyTaskUpdate(ctx, op.targetID)
	}
	if err != nil {
		s.logger.Warn("broadcast failed, continuing local-only", "error", err)
		return
	}

	if err := s.broadcast.NotifyStatsRefresh(ctx); err != nil {
		s.logger.Warn("broadcast failed, continuing local-only", "error", err)
	}
}

// applyUpdates переносит заданные поля на задачу
func applyUpdates(task *models.Task, updates UpdateTaskInput) {
	if updates.Title != nil {
		task.Title = *updates.Title
	}
	if updates.Description != nil {
		task.Description = *updates.Description
	}
	if updates.Status != nil {
		task.Status = *updates.Status
	}
	if updates.Priority != nil {
		task.Priority = *updates.Priority
	}
	if updates.Assignee != nil {
		task.Assignee = *updates.Assignee
	}
	if updates.Labels != nil {
		task.Labels = append([]string{}, (*updates.Labels)...)
	}
	if updates.DueDate != nil {
		due := *updates.DueDate
		task.DueDate = &due
	}
	if updates.SnoozedUntil != nil {
		snoozed := *updates.SnoozedUntil
		task.SnoozedUntil = &snoozed
	}
}

// eventFor отображает тип операции в имя серверного события
func eventFor(op models.OperationType) string {
	switch op {
	case models.OpCreate:
		return api.EventTaskCreate
	case models.OpDelete:
		return api.EventTaskDelete
	}

	return api.EventTaskUpdate
}
