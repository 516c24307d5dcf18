// Package httpx provides the retrying JSON-over-HTTP transport shared by the
// tracker REST clients.
package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 60 * time.Second

	defaultRetryMaxElapsed = 2 * time.Minute
)

// DefaultBackOff returns the retry policy used when a Client has none.
// BackOff implementations are stateful; always return a fresh instance.
var DefaultBackOff = func() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = defaultRetryMaxElapsed
	return bo
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Service, e.StatusCode, e.Body)
}

// Request describes one API call. Body is replayed on every attempt.
type Request struct {
	Method      string
	URL         string
	Body        []byte
	ContentType string
	Header      http.Header

	// Idempotent marks a request with a non-idempotent method (a POST
	// search, say) as safe to replay after a 5xx or transport failure.
	Idempotent bool
}

// replayable reports whether a failed attempt may have had side effects that
// a retry would duplicate.
func (r Request) replayable() bool {
	if r.Idempotent {
		return true
	}
	switch r.Method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions,
		http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client executes authenticated requests and retries rate-limited (429)
// failures with exponential backoff. Server-side (5xx) and transport failures
// are retried only for replayable requests: a POST that reached the server
// may already have created something.
type Client struct {
	// Service names the remote API in error messages (e.g., "jira").
	Service string

	HTTPClient *http.Client
	UserAgent  string

	// Auth sets authentication headers on every outgoing request.
	Auth func(req *http.Request)

	// BackOff returns a fresh retry policy; nil means DefaultBackOff.
	BackOff func() backoff.BackOff
}

// New returns a Client with the default timeout.
func New(service string, auth func(req *http.Request)) *Client {
	return &Client{
		Service:    service,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		UserAgent:  "trackmigrate/1.0",
		Auth:       auth,
	}
}

// Do executes req, retrying transient failures until the backoff policy
// gives up or ctx is done.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	newBackOff := c.BackOff
	if newBackOff == nil {
		newBackOff = DefaultBackOff
	}

	var resp *Response
	err := backoff.Retry(func() error {
		r, err := c.doOnce(ctx, req)
		if err == nil {
			resp = r
			return nil
		}
		if isRetryable(ctx, err, req.replayable()) {
			return err // Retryable - backoff will retry
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(newBackOff(), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Get is a convenience wrapper for GET requests returning the body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) doOnce(ctx context.Context, r Request) (*Response, error) {
	var bodyReader io.Reader
	if r.Body != nil {
		bodyReader = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bodyReader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.Auth != nil {
		c.Auth(req)
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if r.Body != nil {
		contentType := r.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Service: c.Service, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

func isRetryable(ctx context.Context, err error, replayable bool) bool {
	if ctx.Err() != nil {
		return false
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return replayable && statusErr.StatusCode >= 500
	}
	// Transport-level failures (connection reset, timeouts)
	return replayable
}
