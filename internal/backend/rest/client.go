// Package rest speaks the backend protocol over HTTP.
//
//	POST   /rest/{table}                  insert
//	POST   /rest/{table}?on_conflict=a,b  upsert
//	PATCH  /rest/{table}/{id}             update
//	DELETE /rest/{table}/{id}             delete
//	GET    /rest/{table}                  list
//	POST   /rpc/increment_enrollment_count
//	GET    /health
package rest

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

	"github.com/ashaai/fieldsync/internal/backend"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 15 * time.Second
	// DefaultMaxResponseBytes bounds a single response body.
	DefaultMaxResponseBytes = 32 << 20
)

// Client is a backend.Backend over HTTP.
type Client struct {
	baseURL  string
	http     *http.Client
	maxBytes int64
}

var _ backend.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The client is copied,
// so later options never modify the caller's value.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cp := *c
		cl.http = &cp
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// WithMaxResponseBytes caps how much of a response body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBytes = n
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: DefaultTimeout},
		maxBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Insert implements backend.Backend.
func (c *Client) Insert(ctx context.Context, table string, row backend.Row) error {
	_, err := c.do(ctx, http.MethodPost, tablePath(table), row)
	return err
}

// Upsert implements backend.Backend.
func (c *Client) Upsert(ctx context.Context, table string, row backend.Row, conflictKeys []string) error {
	p := tablePath(table)
	if len(conflictKeys) > 0 {
		p += "?on_conflict=" + url.QueryEscape(strings.Join(conflictKeys, ","))
	}
	_, err := c.do(ctx, http.MethodPost, p, row)
	return err
}

// Update implements backend.Backend.
func (c *Client) Update(ctx context.Context, table, id string, fields backend.Row) error {
	_, err := c.do(ctx, http.MethodPatch, rowPath(table, id), fields)
	return err
}

// Delete implements backend.Backend.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	_, err := c.do(ctx, http.MethodDelete, rowPath(table, id), nil)
	return err
}

// List implements backend.Backend.
func (c *Client) List(ctx context.Context, table string) ([]backend.Row, error) {
	body, err := c.do(ctx, http.MethodGet, tablePath(table), nil)
	if err != nil {
		return nil, err
	}
	var rows []backend.Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, backend.StatusError("list "+table, http.StatusOK, "malformed listing: "+err.Error())
	}
	return rows, nil
}

// IncrementEnrollmentCount implements backend.Backend.
func (c *Client) IncrementEnrollmentCount(ctx context.Context, schemeID string) error {
	body, _ := json.Marshal(rpcIncrement{SchemeID: schemeID})
	_, err := c.do(ctx, http.MethodPost, "/rpc/"+backend.RPCIncrementEnrollmentCount, body)
	return err
}

// Health checks the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err
}

type rpcIncrement struct {
	SchemeID string `json:"scheme_id"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func tablePath(table string) string {
	return "/rest/" + url.PathEscape(table)
}

func rowPath(table, id string) string {
	return tablePath(table) + "/" + url.PathEscape(id)
}

// do sends one request and maps failures onto the backend error kinds.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	op := method + " " + path
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, backend.StatusError(op, 0, err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, backend.NetworkError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, backend.NetworkError(op, fmt.Errorf("read body: %w", err))
	}
	if int64(len(data)) > c.maxBytes {
		return nil, backend.StatusError(op, resp.StatusCode, fmt.Sprintf("response body exceeds %d bytes", c.maxBytes))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusConflict:
		return nil, backend.ConflictError(path, message(data))
	default:
		return nil, backend.StatusError(op, resp.StatusCode, message(data))
	}
}

func message(data []byte) string {
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Message != "" {
		return eb.Message
	}
	return strings.TrimSpace(string(data))
}
