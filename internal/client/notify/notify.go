package notify

//go:generate moq -out notify_mock.go . Notifier

// Notifier surfaces user-visible feedback for optimistic operations.
// The engine reports outcomes here instead of logging, so the host
// application decides how failures reach the user.
type Notifier interface {
	Success(format string, a ...any)
	Error(format string, a ...any)
	Info(format string, a ...any)
}
