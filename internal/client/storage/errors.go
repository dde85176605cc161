package storage

import "errors"

// Common client storage errors
var (
	// ErrTaskNotFound indicates that task was not found
	ErrTaskNotFound = errors.New("task not found")

	// ErrEventNotFound indicates that event log entry was not found
	ErrEventNotFound = errors.New("event not found")

	// ErrQueueEntryNotFound indicates that offline queue entry was not found
	ErrQueueEntryNotFound = errors.New("queue entry not found")

	// ErrKeyNotFound indicates that metadata or view-state key has no value
	ErrKeyNotFound = errors.New("key not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
