package broadcast

import (
	"encoding/json"
	"time"
)

// Message types carried between tabs of the same workspace
const (
	TypeCacheInvalidate = "cache_invalidate"
	TypeTaskUpdate      = "task_update"
	TypeTaskArchive     = "task_archive"
	TypeTaskRestore     = "task_restore"
	TypeMeetingUpdate   = "meeting_update"
	TypeStatsRefresh    = "stats_refresh"
	TypeFilterSync      = "filter_sync"
	TypeDriftCheck      = "drift_check"
	TypeTabConnected    = "tab_connected"
	TypeTabDisconnected = "tab_disconnected"
)

// Message представляет одно сообщение межвкладочной шины.
// TabID идентифицирует отправителя: получатель отбрасывает собственные
// сообщения, WorkspaceID отсекает чужие workspace на общем канале.
type Message struct {
	Timestamp   time.Time       `json:"timestamp"`
	Type        string          `json:"type"`
	TabID       string          `json:"tab_id"`
	WorkspaceID string          `json:"workspace_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}
