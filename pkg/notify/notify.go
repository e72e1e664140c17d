package notify

import "context"

// Event is the minimal payload the core hands to the notification boundary.
// Delivery semantics (push, SMS, email templates) live outside the core.
type Event struct {
	Recipient string // email address of the principal to notify
	Subject   string
	Body      string
}

// Notifier is the boundary the aggregates talk to. Implementations must be
// safe to call concurrently; failures are logged by callers, never fatal to
// the transition that triggered them.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Noop discards every event. Used in tests and when no sender is configured.
type Noop struct{}

func (Noop) Notify(ctx context.Context, ev Event) error { return nil }
