// Package agentapi talks to the upstream conversational agent service over HTTP.
package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RequestIDHeader carries the per-turn request identifier.
const RequestIDHeader = "X-Request-ID"

const maxErrorBody = 512

// Error is a transport-level failure: the service was unreachable, answered
// with a non-2xx status, or returned a body that is not JSON.
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("agentapi: %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("agentapi: %s failed with status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("agentapi: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("agentapi: %s failed", e.Op)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client is an HTTP client for the agent service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the service at baseURL
// (e.g. "http://127.0.0.1:2024").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateThread opens a conversation thread and returns its identifier.
func (c *Client) CreateThread(ctx context.Context, metadata map[string]any) (string, error) {
	const op = "create thread"

	raw, err := c.post(ctx, op, "/threads", map[string]any{"metadata": metadata}, "")
	if err != nil {
		return "", err
	}

	body, _ := raw.(map[string]any)
	threadID, _ := body["thread_id"].(string)
	if threadID == "" {
		return "", &Error{Op: op, Err: fmt.Errorf("response has no thread_id")}
	}
	return threadID, nil
}

// RunWait starts a run on the thread and blocks until it completes,
// returning the decoded response body.
func (c *Client) RunWait(ctx context.Context, threadID string, body any, requestID string) (any, error) {
	path := "/threads/" + url.PathEscape(threadID) + "/runs/wait"
	return c.post(ctx, "run", path, body, requestID)
}

func (c *Client) post(ctx context.Context, op, path string, payload any, requestID string) (any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.String("op", op), zap.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("agent service returned error status",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", requestID))
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return raw, nil
}
