package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError reports a non-2xx response from a collaborator.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Options configures an outbound HTTP client. Retry and Breaker are
// opt-in; the zero value issues a single attempt per call.
type Options struct {
	Timeout time.Duration
	Header  http.Header
	Retry   RetryPolicy
	Breaker *CircuitBreaker
}

// Client issues JSON requests against a named route under a base URI.
type Client struct {
	http    *http.Client
	header  http.Header
	retry   RetryPolicy
	breaker *CircuitBreaker
}

// NewClient constructs a client from options.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		header:  opts.Header,
		retry:   opts.Retry,
		breaker: opts.Breaker,
	}
}

// Send POSTs a JSON body to baseURI+route and returns the raw response body.
func (c *Client) Send(ctx context.Context, baseURI, route string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, baseURI, route, body)
}

// Get issues a GET against baseURI+route and returns the raw response body.
func (c *Client) Get(ctx context.Context, baseURI, route string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, baseURI, route, nil)
}

// Do issues one JSON request, applying the client's retry and breaker
// policies. Non-2xx responses are returned as *StatusError.
func (c *Client) Do(ctx context.Context, method, baseURI, route string, body any) (json.RawMessage, error) {
	if baseURI == "" {
		return nil, fmt.Errorf("%s %s: base uri required", method, route)
	}
	url := strings.TrimRight(baseURI, "/") + route

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", method, url, err)
		}
	}

	var raw json.RawMessage
	attempt := func() error {
		var err error
		raw, err = c.roundTrip(ctx, method, url, payload)
		return err
	}

	run := attempt
	if c.breaker != nil {
		run = func() error { return c.breaker.Execute(attempt) }
	}
	if err := c.retry.Do(ctx, run); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) roundTrip(ctx context.Context, method, url string, payload []byte) (json.RawMessage, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, values := range c.header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method: method,
			URL:    url,
			Code:   resp.StatusCode,
			Body:   truncate(string(data), 256),
		}
	}
	return json.RawMessage(data), nil
}

const maxResponseBytes = 4 << 20

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
