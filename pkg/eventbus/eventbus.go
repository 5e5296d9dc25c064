// Package eventbus provides event-driven communication infrastructure for
// execution lifecycle notifications.
package eventbus

import (
	"context"

	"github.com/dagrun/dagrun/pkg/events"
)

type EventHandler func(ctx context.Context, event events.Event) error

// EventBus fans execution lifecycle events out to subscribers. Events for
// a single execution are published in scheduler progress order; the bus
// does not reorder them.
type EventBus interface {
	Publish(ctx context.Context, key string, event events.Event) error
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
	Close() error
	GenerateID() string
}
