package models

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/voxnote/tasksync/pkg/api"
)

// TaskStatus определяет статус задачи
type TaskStatus string

// Допустимые статусы задачи
const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// TaskPriority определяет приоритет задачи
type TaskPriority string

// Допустимые приоритеты задачи
const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Due bucket names понимаемые фильтром задач
const (
	DueToday    = "today"
	DueOverdue  = "overdue"
	DueThisWeek = "this_week"
)

// Task представляет задачу, извлеченную из транскрипта встречи.
// До подтверждения сервером задача живет под временным клиентским ID
// (temp_<ts>_<rand>) и несет транзитные оптимистичные отметки.
type Task struct {
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	SnoozedUntil *time.Time   `json:"snoozed_until,omitempty"`
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`
	Assignee     string       `json:"assignee,omitempty"`
	Labels       []string     `json:"labels,omitempty"`

	// Optimistic marks the record as not yet confirmed by the server.
	// OperationID links it to the in-flight mutation that produced it.
	// Both are cleared on reconciliation.
	Optimistic  bool   `json:"_optimistic,omitempty"`
	OperationID string `json:"_operation_id,omitempty"`
}

// TaskFromPayload converts the server's task shape to the local model.
// The result carries no optimistic marks: a server record is confirmed
// by definition.
func TaskFromPayload(p *api.TaskPayload) *Task {
	return &Task{
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		DueDate:      p.DueDate,
		SnoozedUntil: p.SnoozedUntil,
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Status:       TaskStatus(p.Status),
		Priority:     TaskPriority(p.Priority),
		Assignee:     p.Assignee,
		Labels:       p.Labels,
	}
}

// NewTempID generates a temporary client-side task id.
// The server assigns the real id on confirmation.
func NewTempID() string {
	return fmt.Sprintf("temp_%d_%06d", time.Now().UnixMilli(), rand.Intn(1000000))
}

// IsTempID reports whether the id is a client-generated temporary id
func IsTempID(id string) bool {
	return strings.HasPrefix(id, "temp_")
}

// HasLabel reports whether the task carries the given label
func (t *Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Clone создает глубокую копию задачи (snapshot для отката)
func (t *Task) Clone() *Task {
	cloned := *t

	if t.DueDate != nil {
		due := *t.DueDate
		cloned.DueDate = &due
	}
	if t.SnoozedUntil != nil {
		snoozed := *t.SnoozedUntil
		cloned.SnoozedUntil = &snoozed
	}
	if t.Labels != nil {
		cloned.Labels = make([]string, len(t.Labels))
		copy(cloned.Labels, t.Labels)
	}

	return &cloned
}

// TaskFilters описывает фильтры для выборки задач из локального хранилища.
// Вся фильтрация выполняется в памяти, без обращения к сети.
type TaskFilters struct {
	Status    TaskStatus
	Priority  TaskPriority
	Search    string
	Labels    []string
	DueBucket string
}

// Matches reports whether the task passes every set filter.
// now anchors the snooze cutoff and the local-midnight due buckets.
func (f TaskFilters) Matches(t *Task, now time.Time) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}

	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}

	// Пересечение меток: задача должна нести каждую запрошенную метку
	for _, label := range f.Labels {
		if !t.HasLabel(label) {
			return false
		}
	}

	// Отложенные задачи скрыты до истечения snoozed_until
	if t.SnoozedUntil != nil && t.SnoozedUntil.After(now) {
		return false
	}

	if f.DueBucket != "" {
		if !matchesDueBucket(t, f.DueBucket, now) {
			return false
		}
	}

	return true
}

// matchesDueBucket проверяет попадание due_date в запрошенный интервал
// относительно локальной полуночи
func matchesDueBucket(t *Task, bucket string, now time.Time) bool {
	if t.DueDate == nil {
		return false
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	due := *t.DueDate

	switch bucket {
	case DueToday:
		return !due.Before(midnight) && due.Before(midnight.AddDate(0, 0, 1))
	case DueOverdue:
		return due.Before(midnight)
	case DueThisWeek:
		return !due.Before(midnight) && due.Before(midnight.AddDate(0, 0, 7))
	default:
		return false
	}
}
