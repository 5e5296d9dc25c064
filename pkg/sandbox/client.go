// Package sandbox is the client for the external code-execution service.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dagrun/dagrun/pkg/protocol"
)

const (
	// maxResponseBytes bounds the sandbox response we are willing to read.
	maxResponseBytes = 4 << 20

	defaultTimeout = 30 * time.Second
)

// Client implements protocol.Sandbox against an HTTP execution service.
// The service owns isolation; this client owns deadlines and size bounds.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

type executePayload struct {
	Language  string         `json:"language"`
	Code      string         `json:"code"`
	Input     map[string]any `json:"input,omitempty"`
	TimeoutMs int64          `json:"timeout_ms"`
}

func (c *Client) Execute(ctx context.Context, req protocol.SandboxRequest) (*protocol.SandboxResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	payload, err := json.Marshal(executePayload{
		Language:  req.Language,
		Code:      req.Code,
		Input:     req.Input,
		TimeoutMs: timeout.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sandbox request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sandbox request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read sandbox response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sandbox returned status %d: %s", resp.StatusCode, string(body))
	}

	var result protocol.SandboxResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode sandbox response: %w", err)
	}

	return &result, nil
}

// Disabled is the sandbox used when no execution service is configured:
// every CODE node fails cleanly instead of silently doing nothing.
type Disabled struct{}

func (Disabled) Execute(_ context.Context, _ protocol.SandboxRequest) (*protocol.SandboxResult, error) {
	return nil, errors.New("code sandbox is not configured")
}
