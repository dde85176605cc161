package api

import (
	"encoding/json"
	"time"
)

// Event names understood by the server for task mutations
const (
	EventTaskCreate        = "task:create"
	EventTaskUpdate        = "task:update"
	EventTaskDelete        = "task:delete"
	EventWorkspaceChecksum = "workspace:checksum"
)

// TaskPayload представляет задачу в формате сервера: без транзитных
// оптимистичных отметок клиента
type TaskPayload struct {
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	Assignee     string     `json:"assignee,omitempty"`
	Labels       []string   `json:"labels,omitempty"`
}

// MutationRequest представляет одну мутацию задачи, отправляемую на сервер.
// OperationID стабилен между повторами: сервер дедуплицирует по нему,
// поэтому воспроизведение после потерянного подтверждения безопасно.
type MutationRequest struct {
	OperationID string          `json:"operation_id"`
	WorkspaceID string          `json:"workspace_id"`
	Type        string          `json:"type"`
	TaskID      string          `json:"task_id,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// MutationResponse представляет подтверждение сервера.
// Duplicate означает, что операция с этим operation_id уже была
// применена ранее: клиент считает такой ответ успехом.
type MutationResponse struct {
	ServerTime time.Time    `json:"server_time"`
	Task       *TaskPayload `json:"task,omitempty"`
	Duplicate  bool         `json:"duplicate,omitempty"`
}

// ChecksumRequest запрашивает контрольную сумму состояния workspace
type ChecksumRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

// ChecksumResponse представляет серверную контрольную сумму для
// обнаружения тихого расхождения (idle drift)
type ChecksumResponse struct {
	ServerTime  time.Time `json:"server_time"`
	WorkspaceID string    `json:"workspace_id"`
	Checksum    string    `json:"checksum"`
	TaskCount   int       `json:"task_count"`
}

// ErrorResponse представляет ошибку сервера
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
