// Package httpx is the outbound HTTP client shared by the embedding and
// bibliographic adapters: per-attempt timeouts, a fixed retry budget and
// optional rate limiting.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// maxBodyBytes bounds a response body read into memory.
const maxBodyBytes = 32 << 20

// maxRetryAfter caps how long a Retry-After header may stall a caller.
const maxRetryAfter = 30 * time.Second

// StatusError is a non-2xx response.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = domain.Truncate(body, 200) + "..."
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, body)
}

// Unwrap maps the status to a domain error.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case e.StatusCode >= 500:
		return domain.ErrExternalServiceUnavailable
	default:
		return nil
	}
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RequestFunc builds a fresh request for one attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Client sends requests with retries.
type Client struct {
	name    string
	http    *http.Client
	limiter *RateLimiter
	timeout time.Duration
	retries int
	backoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimiter throttles every attempt through limiter.
func WithRateLimiter(limiter *RateLimiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets the retries after the first attempt, at most two.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 && n <= domain.DefaultMaxRetries {
			c.retries = n
		}
	}
}

// WithBackoff sets the delay before the first retry; it doubles per retry.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// New creates a client. name labels errors and log lines.
func New(name string, opts ...Option) *Client {
	c := &Client{
		name:    name,
		http:    &http.Client{},
		timeout: domain.DefaultExternalTimeout,
		retries: domain.DefaultMaxRetries,
		backoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the service label.
func (c *Client) Name() string {
	return c.name
}

// Do sends the request built by build and returns the response body.
// Network errors, timeouts, 429 and 5xx responses are retried; other
// statuses fail at once with a *StatusError.
func (c *Client) Do(ctx context.Context, build RequestFunc) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			var se *StatusError
			if errors.As(lastErr, &se) && se.StatusCode == http.StatusTooManyRequests {
				delay = max(delay, c.retryAfter(lastErr))
			}
			logger.Debug("%s: retry %d/%d in %s: %v", c.name, attempt, c.retries, delay, lastErr)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		body, err := c.attempt(ctx, build)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

// DoJSON is Do followed by decoding the body into out.
func (c *Client) DoJSON(ctx context.Context, build RequestFunc, out any) error {
	body, err := c.Do(ctx, build)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, build RequestFunc) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%s: %w after %s", c.name, domain.ErrExternalServiceTimeout, c.timeout)
		}
		return nil, fmt.Errorf("%s: %w: %w", c.name, domain.ErrExternalServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%s: %w reading body", c.name, domain.ErrExternalServiceTimeout)
		}
		return nil, fmt.Errorf("%s: read response: %w", c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Service: c.name, StatusCode: resp.StatusCode, Body: string(body)}
		if resp.StatusCode == http.StatusTooManyRequests {
			wait := parseRetryAfter(resp.Header.Get("Retry-After"))
			if c.limiter != nil {
				c.limiter.RecordRateLimit(wait)
			}
			return nil, &retryAfterError{StatusError: se, wait: wait}
		}
		return nil, se
	}
	return body, nil
}

func (c *Client) retryAfter(err error) time.Duration {
	var ra *retryAfterError
	if errors.As(err, &ra) {
		return ra.wait
	}
	return 0
}

// retryAfterError carries the server-requested delay of a 429.
type retryAfterError struct {
	*StatusError
	wait time.Duration
}

func (e *retryAfterError) Unwrap() error {
	return e.StatusError
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return min(time.Duration(secs)*time.Second, maxRetryAfter)
	}
	if at, err := http.ParseTime(v); err == nil {
		return min(max(time.Until(at), 0), maxRetryAfter)
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
