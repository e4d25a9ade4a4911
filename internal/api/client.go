// Package api wraps the platform's HTTP endpoints. Every response uses the
// envelope {success, message, data?}.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader correlates client logs with server logs.
const RequestIDHeader = "X-Request-ID"

const maxErrorBody = 64 << 10

// Envelope is the uniform response body of the platform API.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// Client calls the platform API over HTTP. Authentication is the concern of
// the http.Client's transport, not of Client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
}

// New creates a Client for baseURL. A nil httpClient uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		Logger:  slog.New(slog.DiscardHandler),
	}
}

// call sends one request and decodes the envelope. in is JSON-encoded when
// non-nil. A success:false envelope is returned as *EnvelopeError.
func call[T any](ctx context.Context, c *Client, method, path string, in any) (Envelope[T], error) {
	var env Envelope[T]

	var body io.Reader
	var raw []byte
	if in != nil {
		var err error
		raw, err = json.Marshal(in)
		if err != nil {
			return env, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return env, fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.logger().Debug("api_request", "method", method, "path", path, "request_id", reqID, "error", err.Error())
		return env, err
	}
	defer resp.Body.Close()
	c.logger().Debug("api_request",
		"method", method,
		"path", path,
		"request_id", reqID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode}
		var failed Envelope[json.RawMessage]
		if json.Unmarshal(data, &failed) == nil {
			apiErr.Message = failed.Message
		}
		return env, apiErr
	}

	if resp.StatusCode == http.StatusNoContent {
		env.Success = true
		return env, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return env, fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success {
		return env, &EnvelopeError{Message: env.Message}
	}
	return env, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// withQuery appends key=value to path when value is set.
func withQuery(path, key, value string) string {
	if value == "" {
		return path
	}
	return path + "?" + url.Values{key: []string{value}}.Encode()
}

func itemPath(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}
