package web

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/dagrun/dagrun/pkg/persistence"
)

// StreamExecutionEvents serves the execution's lifecycle events over SSE.
// The stream carries only events emitted after the subscription; callers
// needing history read the execution record instead. It ends when the
// execution reaches a terminal state.
func (h *APIHandlers) StreamExecutionEvents(c fiber.Ctx) error {
	executionID := c.Params("id")

	if _, err := h.store.ExecutionByID(c.Context(), executionID); err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "execution not found")
		}

		return internalError(c, err)
	}

	ch, cancel := h.hub.Subscribe(executionID)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		for event := range ch {
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("encode stream event", "execution_id", executionID, "error", err)

				continue
			}

			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.GetType(), payload); err != nil {
				return
			}

			if err := w.Flush(); err != nil {
				// Client went away; the deferred cancel detaches us.
				return
			}
		}

		// Channel closed: the execution is terminal.
		fmt.Fprint(w, "event: stream.closed\ndata: {}\n\n")
		_ = w.Flush()
	})
}
