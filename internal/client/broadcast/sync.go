package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxnote/tasksync/internal/models"
)

// TaskRef is the payload of task-scoped messages
type TaskRef struct {
	TaskID string `json:"task_id"`
}

// MeetingRef is the payload of meeting-scoped messages
type MeetingRef struct {
	MeetingID string `json:"meeting_id"`
}

// DriftPayload carries a state checksum for cross-tab comparison
type DriftPayload struct {
	Checksum  string `json:"checksum"`
	TaskCount int    `json:"task_count"`
}

// Service связывает вкладку с межвкладочной шиной.
// Подавляет собственные сообщения по tab id, отбрасывает чужие
// workspace и буферизует исходящие сообщения до готовности шины,
// чтобы ранние мутации не терялись во время запуска.
type Service struct {
	channel     Channel
	tabID       string
	workspaceID string
	logger      *slog.Logger

	mu          sync.Mutex
	ready       bool
	outbox      []*Message
	handlers    map[string]map[int]func(msg *Message)
	nextID      int
	unsubscribe func()
}

func NewService(channel Channel, workspaceID string, logger *slog.Logger) *Service {
	return &Service{
		channel:     channel,
		tabID:       uuid.New().String(),
		workspaceID: workspaceID,
		logger:      logger,
		handlers:    make(map[string]map[int]func(msg *Message)),
	}
}

// TabID возвращает идентификатор этой вкладки
func (s *Service) TabID() string {
	return s.tabID
}

// Start подписывается на шину, объявляет вкладку и сбрасывает
// накопленные до готовности сообщения
func (s *Service) Start(ctx context.Context) error {
	unsubscribe, err := s.channel.Subscribe(s.dispatch)
	if err != nil {
		return fmt.Errorf("failed to subscribe to broadcast channel: %w", err)
	}

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.ready = true
	outbox := s.outbox
	s.outbox = nil
	s.mu.Unlock()

	if err := s.Publish(ctx, TypeTabConnected, nil); err != nil {
		return err
	}

	// Сбрасываем исходящие в исходном порядке
	for _, msg := range outbox {
		if err := s.channel.Publish(ctx, msg); err != nil {
			return fmt.Errorf("failed to flush queued broadcast: %w", err)
		}
	}

	return nil
}

// Publish отправляет сообщение указанного типа. До Start сообщение
// буферизуется и уходит при подключении.
func (s *Service) Publish(ctx context.Context, msgType string, payload any) error {
	msg := &Message{
		Timestamp:   time.Now(),
		Type:        msgType,
		TabID:       s.tabID,
		WorkspaceID: s.workspaceID,
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal broadcast payload: %w", err)
		}
		msg.Payload = data
	}

	s.mu.Lock()
	if !s.ready {
		s.outbox = append(s.outbox, msg)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.channel.Publish(ctx, msg)
}

// On регистрирует обработчик для типа сообщения и возвращает id подписки
func (s *Service) On(msgType string, fn func(msg *Message)) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers[msgType] == nil {
		s.handlers[msgType] = make(map[int]func(msg *Message))
	}

	id := s.nextID
	s.nextID++
	s.handlers[msgType][id] = fn

	return id
}

// Off снимает обработчик по id подписки
func (s *Service) Off(msgType string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.handlers[msgType], id)
}

// Close объявляет отключение вкладки и отписывается от шины
func (s *Service) Close(ctx context.Context) error {
	err := s.Publish(ctx, TypeTabDisconnected, nil)

	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.ready = false
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	return err
}

// dispatch доставляет входящее сообщение обработчикам.
// Собственные сообщения и чужие workspace отбрасываются.
func (s *Service) dispatch(msg *Message) {
	if msg.TabID == s.tabID {
		return
	}
	if msg.WorkspaceID != s.workspaceID {
		return
	}

	s.mu.Lock()
	fns := make([]func(msg *Message), 0, len(s.handlers[msg.Type]))
	for _, fn := range s.handlers[msg.Type] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

// NotifyTaskUpdate сообщает другим вкладкам об измененной задаче
func (s *Service) NotifyTaskUpdate(ctx context.Context, taskID string) error {
	return s.Publish(ctx, TypeTaskUpdate, TaskRef{TaskID: taskID})
}

// NotifyTaskArchive сообщает другим вкладкам об архивированной задаче
func (s *Service) NotifyTaskArchive(ctx context.Context, taskID string) error {
	return s.Publish(ctx, TypeTaskArchive, TaskRef{TaskID: taskID})
}

// NotifyTaskRestore сообщает другим вкладкам о восстановленной задаче
func (s *Service) NotifyTaskRestore(ctx context.Context, taskID string) error {
	return s.Publish(ctx, TypeTaskRestore, TaskRef{TaskID: taskID})
}

// NotifyCacheInvalidate просит другие вкладки перечитать локальное состояние
func (s *Service) NotifyCacheInvalidate(ctx context.Context) error {
	return s.Publish(ctx, TypeCacheInvalidate, nil)
}

// NotifyMeetingUpdate сообщает другим вкладкам об изменении встречи
func (s *Service) NotifyMeetingUpdate(ctx context.Context, meetingID string) error {
	return s.Publish(ctx, TypeMeetingUpdate, MeetingRef{MeetingID: meetingID})
}

// NotifyStatsRefresh просит другие вкладки пересчитать статистику
func (s *Service) NotifyStatsRefresh(ctx context.Context) error {
	return s.Publish(ctx, TypeStatsRefresh, nil)
}

// NotifyFilterSync распространяет состояние фильтров на другие вкладки
func (s *Service) NotifyFilterSync(ctx context.Context, filters models.TaskFilters) error {
	return s.Publish(ctx, TypeFilterSync, filters)
}

// NotifyDriftCheck публикует контрольную сумму состояния для сверки
func (s *Service) NotifyDriftCheck(ctx context.Context, checksum string, taskCount int) error {
	return s.Publish(ctx, TypeDriftCheck, DriftPayload{Checksum: checksum, TaskCount: taskCount})
}
