package httprequest

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration
	Retries int
}

func parseConfig(raw map[string]any) (Config, error) {
	cfg := Config{
		Method:  http.MethodGet,
		Timeout: defaultTimeout,
	}

	url, ok := raw["url"].(string)
	if !ok || url == "" {
		return Config{}, fmt.Errorf("'url' is required")
	}

	cfg.URL = url

	if v, ok := raw["method"].(string); ok && v != "" {
		method := strings.ToUpper(v)

		switch method {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead:
			cfg.Method = method
		default:
			return Config{}, fmt.Errorf("unsupported method %q", v)
		}
	}

	if v, ok := raw["headers"].(map[string]any); ok {
		cfg.Headers = make(map[string]string, len(v))

		for k, hv := range v {
			s, ok := hv.(string)
			if !ok {
				return Config{}, fmt.Errorf("header %q must be a string", k)
			}

			cfg.Headers[k] = s
		}
	}

	if v, ok := raw["body"].(string); ok {
		cfg.Body = v
	}

	switch v := raw["timeout_ms"].(type) {
	case float64:
		if v > 0 {
			cfg.Timeout = time.Duration(v) * time.Millisecond
		}
	case int:
		if v > 0 {
			cfg.Timeout = time.Duration(v) * time.Millisecond
		}
	}

	switch v := raw["retries"].(type) {
	case float64:
		cfg.Retries = int(v)
	case int:
		cfg.Retries = v
	}

	if cfg.Retries < 0 || cfg.Retries > 10 {
		return Config{}, fmt.Errorf("'retries' must be between 0 and 10")
	}

	return cfg, nil
}
