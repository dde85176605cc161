package models

import (
	"encoding/json"
	"time"

	"github.com/voxnote/tasksync/internal/crdt"
)

// SyncStatus определяет статус синхронизации записи журнала событий
type SyncStatus string

const (
	// SyncPending means the event has not been acknowledged by the server
	SyncPending SyncStatus = "pending"
	// SyncSynced means the event was delivered and acknowledged
	SyncSynced SyncStatus = "synced"
)

// Event type names recorded in the event log
const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"
)

// Event представляет запись append-only журнала событий.
// После записи событие не изменяется, кроме перевода статуса
// синхронизации pending -> synced и установки SyncedAt.
type Event struct {
	Timestamp  time.Time       `json:"timestamp"`
	SyncedAt   *time.Time      `json:"synced_at,omitempty"`
	Type       string          `json:"type"`
	TaskID     string          `json:"task_id"`
	SyncStatus SyncStatus      `json:"sync_status"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Clock      []crdt.Pair     `json:"clock"`
	ID         uint64          `json:"id"`
}

// OperationType определяет тип отложенной мутации
type OperationType string

// Queue operation types
const (
	OpCreate OperationType = "create"
	OpUpdate OperationType = "update"
	OpDelete OperationType = "delete"
)

// Operation описывает мутацию в том виде, в котором она уходит на сервер:
// только чистые входные данные, без оптимистичных UI-отметок.
type Operation struct {
	Type   OperationType   `json:"type"`
	TaskID string          `json:"task_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// QueueEntry представляет запись offline-очереди: мутацию, еще не
// подтвержденную сервером. Порядок воспроизведения определяется
// SortQueueEntries, а не порядком вставки.
type QueueEntry struct {
	Timestamp   time.Time   `json:"timestamp"`
	OperationID string      `json:"operation_id"`
	Op          Operation   `json:"op"`
	Clock       []crdt.Pair `json:"clock"`
	ID          uint64      `json:"id"`
	EventID     uint64      `json:"event_id,omitempty"`
	Priority    int         `json:"priority"`
}

// SortQueueEntries sorts queue entries into the deterministic replay
// order: priority descending, then vector clock causality, then
// timestamp ascending, then queue id as the final stable key.
func SortQueueEntries(entries []*QueueEntry) {
	// Insertion sort по строгому полному порядку; очередь короткая
	less := func(a, b *QueueEntry) bool {
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		switch crdt.FromPairs(a.Clock).Compare(crdt.FromPairs(b.Clock)) {
		case crdt.Less:
			return true
		case crdt.Greater:
			return false
		}
		// Часы конкурентны: детерминированный tie-break по времени
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	}

	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && less(entries[j], entries[j-1]); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// CompactionArchive представляет сводку одной партии вычищенных
// синхронизированных событий. Создается при компактации журнала.
type CompactionArchive struct {
	ArchivedAt  time.Time      `json:"archived_at"`
	OldestEvent time.Time      `json:"oldest_event"`
	NewestEvent time.Time      `json:"newest_event"`
	ByType      map[string]int `json:"by_type"`
	ID          uint64         `json:"id"`
	Count       int            `json:"count"`
}

// CompactionResult возвращается CompactEvents
type CompactionResult struct {
	Cutoff        time.Time `json:"cutoff"`
	Compacted     int       `json:"compacted"`
	RetentionDays int       `json:"retention_days"`
}

// StoreStats содержит счетчики всех коллекций хранилища для диагностики
type StoreStats struct {
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty"`
	LastCompactionAt *time.Time `json:"last_compaction_at,omitempty"`
	Tasks            int        `json:"tasks"`
	Events           int        `json:"events"`
	PendingEvents    int        `json:"pending_events"`
	QueueEntries     int        `json:"queue_entries"`
	Archives         int        `json:"archives"`
	ViewStateKeys    int        `json:"view_state_keys"`
}
