package httprequest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

type mapScope map[string]any

func (m mapScope) Lookup(root string) (any, bool) {
	v, ok := m[root]

	return v, ok
}

func request(t *testing.T, config map[string]any, scope mapScope) models.NodeResult {
	t.Helper()

	p := New(protocol.Dependencies{HTTPClient: http.DefaultClient})
	node := &models.Node{ID: "h", Type: models.NodeTypeHTTPRequest, Name: "h", Enabled: true, Config: config}

	return p.Process(context.Background(), node, protocol.ProcessEnv{Scope: scope})
}

func TestGetDecodesJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	result := request(t, map[string]any{"url": server.URL}, mapScope{})

	require.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, 200, result.Data["status"])

	body, ok := result.Data["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, body["ok"])
}

func TestTemplatesResolveInURLHeadersBody(t *testing.T) {
	var gotPath, gotHeader, gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("X-Token")

		payload, _ := io.ReadAll(r.Body)
		gotBody = string(payload)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	scope := mapScope{"id": "42", "token": "secret", "name": "demo"}

	result := request(t, map[string]any{
		"url":     server.URL + "/items/{{id}}",
		"method":  "POST",
		"headers": map[string]any{"X-Token": "{{token}}"},
		"body":    `{"name":"{{name}}"}`,
	}, scope)

	require.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, "/items/42", gotPath)
	assert.Equal(t, "secret", gotHeader)
	assert.JSONEq(t, `{"name":"demo"}`, gotBody)
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"missing"}`))
	}))
	defer server.Close()

	result := request(t, map[string]any{"url": server.URL, "retries": 3}, mapScope{})

	assert.Equal(t, models.ResultStatusError, result.Status)
	assert.Equal(t, int32(1), calls.Load())

	// The response body stays available for debugging.
	assert.Equal(t, 404, result.Data["status"])
}

func TestServerErrorRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte("recovered"))
	}))
	defer server.Close()

	result := request(t, map[string]any{"url": server.URL, "retries": 5}, mapScope{})

	require.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "recovered", result.Data["body"])
}

func TestMissingURLFails(t *testing.T) {
	result := request(t, map[string]any{}, mapScope{})

	assert.Equal(t, models.ResultStatusError, result.Status)
}

func TestUnsupportedMethodFails(t *testing.T) {
	result := request(t, map[string]any{"url": "http://example.com", "method": "TRACE"}, mapScope{})

	assert.Equal(t, models.ResultStatusError, result.Status)
}
