// Package flowkey is a REST client for the FlowKey scheduling API: the
// public booking endpoints and the staff-scoped management endpoints.
package flowkey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowkey/flowkey-booking/internal/booking"
	"github.com/flowkey/flowkey-booking/internal/observability/metrics"
	"github.com/flowkey/flowkey-booking/internal/session"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 15 * time.Second
)

// Client wraps the FlowKey REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	metrics    *metrics.BookingMetrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-call timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMetrics records call counts and latency per operation.
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New constructs a FlowKey API client.
func New(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type call struct {
	op     string
	method string
	path   string
	sess   *session.Session
	staff  bool
	body   interface{}
	out    interface{}
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	started := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(booking.Classify(err))
		}
		c.metrics.ObserveUpstream(cl.op, outcome, time.Since(started))
	}()

	if cl.staff && cl.sess.Authorization() == "" {
		return fmt.Errorf("flowkey: %s: no staff session: %w", cl.op, booking.ErrUnauthorized)
	}

	var bodyReader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("flowkey: %s: marshal request: %w", cl.op, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, bodyReader)
	if err != nil {
		return fmt.Errorf("flowkey: %s: build request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.staff {
		req.Header.Set("Authorization", cl.sess.Authorization())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("flowkey: %s: %w", cl.op, ctx.Err())
		}
		return fmt.Errorf("flowkey: %s: %v: %w", cl.op, err, booking.ErrTransport)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("flowkey: %s: read response: %v: %w", cl.op, err, booking.ErrTransport)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code, field, msg := parseErrorBody(respBody)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("flowkey API non-2xx response",
			"operation", cl.op,
			"status", resp.StatusCode,
			"path", cl.path,
			"code", code,
			"body", truncate(string(respBody), 300),
		)
		return &APIError{Operation: cl.op, Status: resp.StatusCode, Code: code, Field: field, Message: msg}
	}

	if len(respBody) == 0 || cl.out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, cl.out); err != nil {
		return fmt.Errorf("flowkey: %s: decode response: %v: %w", cl.op, err, booking.ErrTransport)
	}
	return nil
}

// decodeList accepts either a bare JSON array or an object holding the array
// under one of keys.
func decodeList[T any](raw json.RawMessage, keys ...string) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	for _, key := range keys {
		if inner, ok := wrapped[key]; ok {
			return decodeList[T](inner)
		}
	}
	return nil, nil
}
