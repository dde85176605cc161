package broadcast

import "context"

//go:generate moq -out channel_mock.go . Channel

// Channel is the delivery medium between tabs. The in-memory Hub backs
// tests and single-process hosts; RedisChannel crosses processes.
// Implementations deliver every published message to every subscriber,
// the sender included; filtering is the subscriber's job.
type Channel interface {
	Publish(ctx context.Context, msg *Message) error

	// Subscribe registers a delivery callback and returns an
	// unsubscribe function
	Subscribe(fn func(msg *Message)) (unsubscribe func(), err error)

	Close() error
}
