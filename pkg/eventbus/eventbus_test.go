package eventbus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrun/dagrun/pkg/events"
)

func newTestBus(t *testing.T) *WatermillEventBus {
	t.Helper()

	bus := NewGoChannelEventBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestPublishReachesHandler(t *testing.T) {
	bus := newTestBus(t)

	var (
		mu       sync.Mutex
		received []events.NodeCompleted
	)

	bus.Handle(events.NodeCompletedEvent, func(_ context.Context, event events.Event) error {
		completed, ok := event.(events.NodeCompleted)
		require.True(t, ok)

		mu.Lock()
		received = append(received, completed)
		mu.Unlock()

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	event := events.NodeCompleted{
		BaseEvent: events.BaseEvent{
			ID:          bus.GenerateID(),
			Type:        events.NodeCompletedEvent,
			Timestamp:   time.Now().UTC(),
			WorkflowID:  "wf",
			ExecutionID: "ex",
		},
		NodeID:   "n1",
		NodeName: "fetch",
		Progress: events.Progress{Completed: 1, Total: 3},
	}

	require.NoError(t, bus.Publish(ctx, "ex", event))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "n1", received[0].NodeID)
	assert.Equal(t, 3, received[0].Progress.Total)
}

func TestUnhandledEventTypeIsAcked(t *testing.T) {
	bus := newTestBus(t)

	var count sync.WaitGroup

	count.Add(1)

	bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, _ events.Event) error {
		count.Done()

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// The started event has no handler; the completed event after it must
	// still be delivered.
	base := events.BaseEvent{WorkflowID: "wf", ExecutionID: "ex", Timestamp: time.Now().UTC()}
	base.Type = events.ExecutionStartedEvent
	require.NoError(t, bus.Publish(ctx, "ex", events.ExecutionStarted{BaseEvent: base}))

	base.Type = events.ExecutionCompletedEvent
	require.NoError(t, bus.Publish(ctx, "ex", events.ExecutionCompleted{BaseEvent: base}))

	done := make(chan struct{})
	go func() {
		count.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("completed event was not delivered")
	}
}

func TestTerminalEventTypes(t *testing.T) {
	assert.True(t, events.IsTerminal(events.ExecutionCompletedEvent))
	assert.True(t, events.IsTerminal(events.ExecutionFailedEvent))
	assert.False(t, events.IsTerminal(events.NodeCompletedEvent))
	assert.False(t, events.IsTerminal(events.ExecutionStartedEvent))
}
