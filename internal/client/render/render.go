package render

import "github.com/voxnote/tasksync/internal/models"

//go:generate moq -out render_mock.go . Renderer

// Renderer is the presentation surface the optimistic engine drives.
// The engine paints records before the server confirms them and
// repaints or removes them on rollback; implementations only need to
// reflect the record they are given, never to validate it.
type Renderer interface {
	// RenderRecord paints or repaints a single task
	RenderRecord(task *models.Task) error

	// LocateRecord reports whether a task is currently painted
	LocateRecord(id string) bool

	// RemoveRecord erases a painted task; unknown ids are not an error
	RemoveRecord(id string) error

	// SwapRecordID re-keys a painted task after the server assigns a
	// permanent id to a provisional one
	SwapRecordID(oldID, newID string) error
}
