// Package httprequest provides the outbound HTTP call node with template
// resolution on URL, headers and body, and exponential backoff on transient
// failures.
package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
	"github.com/dagrun/dagrun/pkg/template"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 4 << 20
)

type Processor struct {
	client *http.Client
}

func New(deps protocol.Dependencies) *Processor {
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &Processor{client: client}
}

func (p *Processor) Type() models.NodeType {
	return models.NodeTypeHTTPRequest
}

func (p *Processor) Process(ctx context.Context, node *models.Node, env protocol.ProcessEnv) models.NodeResult {
	started := time.Now()

	cfg, err := parseConfig(node.Config)
	if err != nil {
		return timed(models.ErrorResult(node.ID, err.Error()), started)
	}

	url := template.Resolve(cfg.URL, env.Scope)
	body := template.Resolve(cfg.Body, env.Scope)

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = template.Resolve(v, env.Scope)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var (
		status       int
		responseBody string
	)

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.Retries)), ctx)

	err = backoff.Retry(func() error {
		var attemptErr error

		status, responseBody, attemptErr = p.do(ctx, cfg.Method, url, body, headers)
		if attemptErr != nil {
			return attemptErr
		}

		// Server errors are retryable, client errors are not.
		if status >= 500 {
			return fmt.Errorf("server returned %d", status)
		}

		if status >= 400 {
			return backoff.Permanent(fmt.Errorf("server returned %d", status))
		}

		return nil
	}, policy)

	data := map[string]any{
		"status": status,
		"body":   decodeBody(responseBody),
	}

	if err != nil {
		// The response body, when present, stays on the node for debugging.
		failed := models.ErrorResult(node.ID, fmt.Sprintf("%s %s: %v", cfg.Method, url, err))
		if status != 0 {
			failed.Data = data
		}

		return timed(failed, started)
	}

	return timed(models.SuccessResult(node.ID, data), started)
}

func (p *Processor) do(ctx context.Context, method, url, body string, headers map[string]string) (int, string, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, "", err
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, "", err
	}

	return resp.StatusCode, string(payload), nil
}

// decodeBody returns structured JSON when the body parses, the raw string
// otherwise.
func decodeBody(body string) any {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return ""
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		return decoded
	}

	return body
}

func timed(result models.NodeResult, started time.Time) models.NodeResult {
	result.DurationMs = time.Since(started).Milliseconds()

	return result
}
