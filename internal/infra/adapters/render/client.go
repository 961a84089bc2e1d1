// Package render implements the remote GPU queue client: a thin
// bearer-authenticated request/response wrapper with no retry policy of its
// own. Callers decide what a failure means.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/erocrawler/gmanimato/internal/config"
	"github.com/erocrawler/gmanimato/internal/domain/ports/adapter"
)

var _ adapter.RenderBackend = (*Client)(nil)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	log     *zerolog.Logger
}

// NewClient returns nil when no endpoint is configured, which the routing
// layer treats as "remote backend absent".
func NewClient(cfg config.RenderConfig, logger *zerolog.Logger) *Client {
	if cfg.Endpoint == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l := logger.With().Str("component", "render_client").Logger()
	return &Client{
		baseURL: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: timeout},
		log:     &l,
	}
}

type submitResponse struct {
	ID string `json:"id"`
}

// Submit enqueues a workflow payload and returns the provider's job id.
func (c *Client) Submit(ctx context.Context, payload json.RawMessage) (string, error) {
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/run", bytes.NewReader(payload), &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("remote submit returned no job id")
	}
	return resp.ID, nil
}

func (c *Client) Status(ctx context.Context, jobID string) (*adapter.StatusResponse, error) {
	var resp adapter.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status/"+jobID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry asks the provider to re-run a failed job in place. Some providers
// keep the id, some issue a new one; the response id is authoritative.
func (c *Client) Retry(ctx context.Context, jobID string) (string, error) {
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/retry/"+jobID, nil, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return jobID, nil
	}
	return resp.ID, nil
}

func (c *Client) Health(ctx context.Context) (*adapter.HealthResponse, error) {
	var resp adapter.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		c.log.Warn().Int("status", res.StatusCode).Str("path", path).Msg("backend returned non-2xx")
		return &adapter.HTTPError{StatusCode: res.StatusCode, Body: truncate(string(data), 256)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
