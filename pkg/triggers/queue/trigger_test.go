package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewTrigger(t *testing.T) {
	trigger, err := NewTrigger(context.Background(), map[string]any{
		"queue":       "incoming",
		"workflow_id": "wf-1",
		"connection": map[string]any{
			"addr":     "localhost:6379",
			"password": "",
			"db":       "0",
		},
	}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, "incoming", trigger.Queue)
	assert.Equal(t, "localhost:6379", trigger.Connection["addr"])
}

func TestNewTriggerRequiresQueueName(t *testing.T) {
	_, err := NewTrigger(context.Background(), map[string]any{"workflow_id": "wf-1"}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue name")
}

func TestNewTriggerRequiresWorkflowID(t *testing.T) {
	_, err := NewTrigger(context.Background(), map[string]any{"queue": "incoming"}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow id")
}
