package protocol

import "context"

// Notification is a resolved message for an external side channel.
type Notification struct {
	Channel string `json:"channel"` // "webhook", "log"
	Target  string `json:"target,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// Notifier delivers notifications best-effort: delivery failure is recorded
// on the node but does not fail the execution.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
