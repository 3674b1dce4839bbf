// Package apiclient is the front end's HTTP client for the analysis backend.
//
// Every call is a single JSON POST. Failures surface immediately as a
// *NetworkError (the request never produced a response) or a *ServerError
// (non-2xx status, or a 2xx body that is not the expected JSON); nothing is
// retried.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Backend endpoints.
const (
	EndpointAnalyze           = "/analyze"
	EndpointExtractCharacters = "/extract_characters"
	EndpointSearchExcerpt     = "/search_excerpt"
	EndpointChat              = "/chat"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// NetworkError reports a request that could not complete.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError reports a non-2xx response, or a 2xx response whose body could
// not be decoded. Message is the server-provided error string, or
// "Server error: <status>" when the body carries none.
type ServerError struct {
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *ServerError) Error() string { return e.Message }

func (e *ServerError) Unwrap() error { return e.Err }

// Client calls the analysis backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The client's transport
// is used as-is, without tracing instrumentation. A nil client keeps the
// default.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every call. Zero, the default, means calls wait until
// the backend answers or the caller's context ends.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a Client for the backend at baseURL (e.g. "http://127.0.0.1:8081").
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("apiclient: base URL must not be empty")
	}
	c := &Client{baseURL: baseURL}
	for _, o := range opts {
		o(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c, nil
}

// BaseURL returns the backend address the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// errorBody is the backend's error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// Call POSTs payload as JSON to endpoint and decodes a 2xx JSON response into
// out (which may be nil to discard the body).
func (c *Client) Call(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("apiclient: encode %s payload: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("apiclient: create %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &NetworkError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("Server error: %d", resp.StatusCode)
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && strings.TrimSpace(eb.Error) != "" {
			msg = eb.Error
		}
		return &ServerError{Endpoint: endpoint, Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ServerError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("Server error: %d (unreadable response)", resp.StatusCode),
			Err:      err,
		}
	}
	return nil
}
