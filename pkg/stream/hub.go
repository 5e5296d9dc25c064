// Package stream fans execution lifecycle events out to live subscribers,
// one bounded channel per subscriber, scoped to a single execution.
package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dagrun/dagrun/pkg/eventbus"
	"github.com/dagrun/dagrun/pkg/events"
)

const subscriberBuffer = 64

type subscriber struct {
	id int
	ch chan events.Event
}

// Hub bridges the event bus to per-execution subscriptions. A terminal
// event (execution completed or failed) is delivered and then closes every
// subscriber channel for that execution id. Late subscribers receive no
// replay of missed events; callers reconcile via a status query first.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[string][]*subscriber // execution id -> subscribers
	done   map[string]bool          // executions already terminal
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger.With("module", "stream"),
		subs:   make(map[string][]*subscriber),
		done:   make(map[string]bool),
	}
}

// Attach registers the hub on the bus for every lifecycle event type.
func (h *Hub) Attach(bus eventbus.EventBus) {
	handler := func(ctx context.Context, event events.Event) error {
		h.dispatch(event)

		return nil
	}

	bus.Handle(events.NodeStartedEvent, handler)
	bus.Handle(events.NodeCompletedEvent, handler)
	bus.Handle(events.NodeErroredEvent, handler)
	bus.Handle(events.ExecutionStartedEvent, handler)
	bus.Handle(events.ExecutionCompletedEvent, handler)
	bus.Handle(events.ExecutionFailedEvent, handler)
}

// Subscribe returns a channel of events for one execution and a cancel
// function. The channel is closed after the execution's terminal event, or
// immediately when the execution is already known to be terminal.
func (h *Hub) Subscribe(executionID string) (<-chan events.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan events.Event, subscriberBuffer)

	if h.done[executionID] {
		close(ch)

		return ch, func() {}
	}

	h.nextID++
	sub := &subscriber{id: h.nextID, ch: ch}
	h.subs[executionID] = append(h.subs[executionID], sub)

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		h.remove(executionID, sub.id)
	}

	return ch, cancel
}

func (h *Hub) dispatch(event events.Event) {
	executionID := executionIDOf(event)
	if executionID == "" {
		return
	}

	terminal := events.IsTerminal(event.GetType())

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[executionID] {
		select {
		case sub.ch <- event:
		default:
			// Slow subscriber: drop rather than block the scheduler's
			// event path.
			h.logger.Warn("dropping event for slow subscriber", "execution_id", executionID, "event_type", event.GetType())
		}
	}

	if terminal {
		for _, sub := range h.subs[executionID] {
			close(sub.ch)
		}

		delete(h.subs, executionID)
		h.done[executionID] = true
	}
}

func (h *Hub) remove(executionID string, subID int) {
	subs := h.subs[executionID]

	for i, sub := range subs {
		if sub.id == subID {
			h.subs[executionID] = append(subs[:i], subs[i+1:]...)
			close(sub.ch)

			break
		}
	}

	if len(h.subs[executionID]) == 0 {
		delete(h.subs, executionID)
	}
}

func executionIDOf(event events.Event) string {
	switch e := event.(type) {
	case events.NodeStarted:
		return e.ExecutionID
	case events.NodeCompleted:
		return e.ExecutionID
	case events.NodeErrored:
		return e.ExecutionID
	case events.ExecutionStarted:
		return e.ExecutionID
	case events.ExecutionCompleted:
		return e.ExecutionID
	case events.ExecutionFailed:
		return e.ExecutionID
	default:
		return ""
	}
}
