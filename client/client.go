// Package client calls the geo-lb HTTP front door.
package client

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

	"geo-lb/message"
	"geo-lb/registry"
)

// Client talks to one geo-lb server. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client (5s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry retries transient failures up to maxRetries times with exponential
// backoff starting at baseDelay. A 429 is retried for every request since the
// server rejected it unhandled. Connection errors and 503 are retried only for
// GET, because a POST or DELETE may already have taken effect.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
	}
}

// New creates a client for the server at baseURL, e.g. "http://127.0.0.1:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register registers a client and returns it with its assigned ID.
func (c *Client) Register(ctx context.Context, req message.RegisterRequest) (registry.Client, error) {
	var resp message.ClientResponse
	if err := c.do(ctx, http.MethodPost, "/clients", req, &resp); err != nil {
		return registry.Client{}, err
	}
	return resp.Client, nil
}

// Deregister removes one occurrence of the client with the given ID.
// It returns registry.ErrNotFound when the server does not know it.
func (c *Client) Deregister(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/clients/"+url.PathEscape(id), nil, nil)
}

// Select returns a client matching filter, or registry.ErrNotFound.
func (c *Client) Select(ctx context.Context, filter string) (registry.Client, error) {
	var resp message.ClientResponse
	path := "/clients/select?filter=" + url.QueryEscape(filter)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return registry.Client{}, err
	}
	return resp.Client, nil
}

// List returns every registered client.
func (c *Client) List(ctx context.Context) ([]registry.Client, error) {
	var resp message.ListResponse
	if err := c.do(ctx, http.MethodGet, "/clients", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Clients, nil
}

// Reset clears the server's registry.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/admin/reset", nil, nil)
}

// do sends one request, retrying transient failures, and decodes a 2xx body
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	err := c.attempt(ctx, method, path, payload, out)
	for i := 0; i < c.maxRetries && isRetryable(method, err); i++ {
		select {
		case <-time.After(c.baseDelay * time.Duration(1<<i)):
		case <-ctx.Done():
			return ctx.Err()
		}
		err = c.attempt(ctx, method, path, payload, out)
	}
	return err
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e message.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return statusError(resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StatusError is a non-2xx response other than 404.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

func statusError(code int, msg string) error {
	if code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", msg, registry.ErrNotFound)
	}
	return &StatusError{Code: code, Message: msg}
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isRetryable(method string, err error) bool {
	idempotent := method == http.MethodGet || method == http.MethodHead
	switch e := err.(type) {
	case *transportError:
		return idempotent
	case *StatusError:
		switch e.Code {
		case http.StatusTooManyRequests:
			return true
		case http.StatusServiceUnavailable:
			return idempotent
		}
		return false
	default:
		return false
	}
}
