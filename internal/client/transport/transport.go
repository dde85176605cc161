package transport

import (
	"context"
	"fmt"
)

//go:generate moq -out transport_mock.go . Transport

// Transport is the contract the synchronization core consumes from the
// network layer. The real wiring (socket setup, auth, reconnects)
// belongs to the host application; the core only needs delivery with
// acknowledgment and connectivity signals.
type Transport interface {
	// IsConnected reports current connectivity
	IsConnected() bool

	// EmitWithAck delivers a named event and decodes the server's
	// acknowledgment into result (when result is non-nil).
	// The context bounds the attempt; a timeout is a failure,
	// never a silent success.
	EmitWithAck(ctx context.Context, event string, payload, result any) error

	// OnStatusChange registers a connectivity listener and returns an
	// unsubscribe function. The listener fires on every transition.
	OnStatusChange(fn func(connected bool)) (unsubscribe func())
}

// ServerError is an explicit rejection from the server, as opposed to a
// network failure. Rejections are not retried: resending the same
// payload cannot change the verdict.
type ServerError struct {
	Message string
	Code    int
}

func (e *ServerError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("server rejected request (%d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server rejected request: %s", e.Message)
}
