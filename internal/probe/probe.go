// Package probe issues single bounded HTTP requests against monitored APIs
// and evaluates response-body expectations.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBody caps how much of a response body is read for expectation
// evaluation.
const maxResponseBody = 4 << 20 // 4 MB

// FailureKind classifies a probe failure.
type FailureKind int

const (
	// FailureConnection covers DNS errors, refused connections, resets, and
	// any other transport failure that is not a timeout.
	FailureConnection FailureKind = iota
	// FailureTimeout covers deadline-exceeded failures, whether from the
	// per-request timeout or the caller's context.
	FailureTimeout
)

// Error is a typed probe failure. Latency is the time spent before the
// failure surfaced, which is still meaningful for timeout outcomes.
type Error struct {
	Kind    FailureKind
	Latency time.Duration
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == FailureTimeout {
		return fmt.Sprintf("probe timed out after %v: %v", e.Latency.Round(time.Millisecond), e.Err)
	}
	return fmt.Sprintf("probe failed: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Response is the outcome of a successful probe: the request completed and a
// response was read, regardless of status code.
type Response struct {
	StatusCode int
	Latency    time.Duration
	Body       []byte
}

// Config controls probe client construction.
type Config struct {
	// Timeout bounds every request issued by the client.
	Timeout time.Duration
	// ProxyURL, when non-empty, routes all requests through the given proxy.
	ProxyURL string
	// DefaultHeaders are applied to every request before per-request headers.
	DefaultHeaders map[string]string
}

// Client issues HTTP probes. It performs exactly one attempt per call and
// never retries; retry policy belongs to the caller.
type Client struct {
	http     *http.Client
	timeout  time.Duration
	defaults map[string]string
}

// NewClient builds a probe client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		timeout:  timeout,
		defaults: cfg.DefaultHeaders,
	}, nil
}

// Timeout returns the per-request timeout the client was built with.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Do issues one HTTP request and returns the response or a typed *Error.
// Per-request headers override default headers on key collision.
func (c *Client) Do(ctx context.Context, method, rawURL string, headers map[string]string, body string) (*Response, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, &Error{Kind: FailureConnection, Err: fmt.Errorf("build request: %w", err)}
	}

	for k, v := range c.defaults {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)
	if err != nil {
		return nil, &Error{Kind: classify(err), Latency: latency, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	latency = time.Since(start)
	if err != nil {
		return nil, &Error{Kind: classify(err), Latency: latency, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Latency:    latency,
		Body:       data,
	}, nil
}

// classify maps a transport error to a failure kind.
func classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureConnection
}
