package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

type fakeNotifier struct {
	sent []protocol.Notification
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, n protocol.Notification) error {
	f.sent = append(f.sent, n)

	return f.err
}

type mapScope map[string]any

func (m mapScope) Lookup(root string) (any, bool) {
	v, ok := m[root]

	return v, ok
}

func send(t *testing.T, notifier protocol.Notifier, config map[string]any) models.NodeResult {
	t.Helper()

	p := New(protocol.Dependencies{Notifier: notifier})
	node := &models.Node{ID: "n", Type: models.NodeTypeNotification, Name: "n", Enabled: true, Config: config}

	return p.Process(context.Background(), node, protocol.ProcessEnv{Scope: mapScope{"city": "Lisbon"}})
}

func TestMessageResolvedAndDelivered(t *testing.T) {
	notifier := &fakeNotifier{}

	result := send(t, notifier, map[string]any{
		"channel": "webhook",
		"target":  "https://hooks.example/x",
		"subject": "report",
		"message": "weather in {{city}}",
	})

	require.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, true, result.Data["delivered"])

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "weather in Lisbon", notifier.sent[0].Message)
	assert.Equal(t, "report", notifier.sent[0].Subject)
}

func TestChannelDefaultsToLog(t *testing.T) {
	notifier := &fakeNotifier{}

	result := send(t, notifier, map[string]any{"message": "m"})

	require.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, "log", result.Data["channel"])
}

func TestDeliveryFailureIsNodeError(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("timeout")}

	result := send(t, notifier, map[string]any{"message": "m"})

	require.Equal(t, models.ResultStatusError, result.Status)
	assert.Contains(t, result.Error, "timeout")
}

func TestMissingMessageFails(t *testing.T) {
	result := send(t, &fakeNotifier{}, map[string]any{"channel": "log"})

	assert.Equal(t, models.ResultStatusError, result.Status)
}

func TestNoNotifierConfigured(t *testing.T) {
	result := send(t, nil, map[string]any{"message": "m"})

	assert.Equal(t, models.ResultStatusError, result.Status)
}
