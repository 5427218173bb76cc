// Package monday is a thin GraphQL client for the record board that tracks partnership inquiries.
//
// The client never treats a non-2xx status or a GraphQL "errors" array as a Go error from Execute:
// callers inspect the Response and decide. Only transport and decoding failures are returned as errors.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 4 << 20

// Config points the client at an account and board.
type Config struct {
	APIURL       string
	Token        string
	APIVersion   string
	BoardID      string
	GroupID      string
	BoardURL     string
	Timeout      time.Duration
	CreateLabels bool
}

// Observer receives per-call telemetry. MetricsService implements it.
type Observer interface {
	ObserveRemoteCall(operation string, ok bool, duration time.Duration)
	ObserveLinkEncoding(encoder string)
}

// Request is a GraphQL document with variables.
type Request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLError is one entry of the "errors" array.
type GraphQLError struct {
	Message    string          `json:"message"`
	Extensions json.RawMessage `json:"extensions,omitempty"`
}

// Response is the decoded API reply.
type Response struct {
	Data         json.RawMessage `json:"data"`
	Errors       []GraphQLError  `json:"errors"`
	ErrorMessage string          `json:"error_message"`
	ErrorCode    string          `json:"error_code"`
	StatusCode   int             `json:"-"`
}

// Failed reports whether the API rejected the request.
func (r *Response) Failed() bool {
	if r == nil {
		return true
	}
	return len(r.Errors) > 0 || r.ErrorMessage != "" || r.StatusCode >= http.StatusBadRequest
}

// Err converts a failed response into a *RemoteError, or nil.
func (r *Response) Err(operation string) error {
	if !r.Failed() {
		return nil
	}
	remote := &RemoteError{Operation: operation}
	if r != nil {
		remote.StatusCode = r.StatusCode
		for _, e := range r.Errors {
			remote.Messages = append(remote.Messages, e.Message)
		}
		if r.ErrorMessage != "" {
			remote.Messages = append(remote.Messages, r.ErrorMessage)
		}
	}
	return remote
}

// RemoteError is returned by typed helpers when the API answered with errors.
type RemoteError struct {
	Operation  string
	StatusCode int
	Messages   []string
}

func (e *RemoteError) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if msg == "" {
		msg = "request rejected"
	}
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("monday %s (http %d): %s", e.Operation, e.StatusCode, msg)
	}
	return fmt.Sprintf("monday %s: %s", e.Operation, msg)
}

// ItemRef identifies an item together with the board that owns it. Subitems live on their own board,
// so column writes need the subitem board ID rather than the parent board ID.
type ItemRef struct {
	BoardID string `json:"boardId"`
	ItemID  string `json:"itemId"`
}

// Client issues queries and mutations against the GraphQL endpoint.
type Client struct {
	cfg      Config
	http     *http.Client
	logger   *zap.Logger
	observer Observer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver attaches call telemetry.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New constructs a client.
func New(cfg Config, opts ...Option) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.monday.com/v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BoardID returns the configured parent board.
func (c *Client) BoardID() string {
	return c.cfg.BoardID
}

// ItemURL builds the browser link for an item, or "" when no board URL is configured.
func (c *Client) ItemURL(itemID string) string {
	if c.cfg.BoardURL == "" || itemID == "" {
		return ""
	}
	return strings.TrimRight(c.cfg.BoardURL, "/") + "/pulses/" + itemID
}

// Execute posts req and decodes the reply. operation labels logs and metrics.
func (c *Client) Execute(ctx context.Context, operation string, req Request) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)
	ok := err == nil && !resp.Failed()
	if c.observer != nil {
		c.observer.ObserveRemoteCall(operation, ok, time.Since(start))
	}
	if err != nil {
		c.logger.Warn("monday request failed", zap.String("operation", operation), zap.Error(err))
		return nil, err
	}
	if !ok {
		c.logger.Debug("monday request rejected", zap.String("operation", operation), zap.Error(resp.Err(operation)))
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode graphql request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build graphql request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if c.cfg.APIVersion != "" {
		httpReq.Header.Set("API-Version", c.cfg.APIVersion)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post graphql request: %w", err)
	}
	defer httpResp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read graphql response: %w", err)
	}

	resp := &Response{}
	if err := json.Unmarshal(raw, resp); err != nil {
		if httpResp.StatusCode >= http.StatusBadRequest {
			return &Response{
				StatusCode: httpResp.StatusCode,
				Errors:     []GraphQLError{{Message: fmt.Sprintf("http %d: %s", httpResp.StatusCode, truncate(string(raw), 200))}},
			}, nil
		}
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	resp.StatusCode = httpResp.StatusCode
	return resp, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
