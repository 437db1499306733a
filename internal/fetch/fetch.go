// Package fetch is the shared upstream HTTP layer: a client with bounded
// retry and exponential backoff on transient statuses, and a TTL cache
// with a stale-read escape hatch for the cached-value-on-error fallback.
package fetch

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

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single upstream attempt.
	DefaultTimeout = 10 * time.Second

	maxRetries  = 2
	backoffBase = 250 * time.Millisecond
	backoffCap  = 2 * time.Second
)

// Error is a structured upstream failure. Status carries the HTTP status
// when one was received, 0 for transport and decode errors.
type Error struct {
	Source string
	Status int
	Err    error

	transient bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could plausibly succeed.
func (e *Error) Retryable() bool {
	if e.transient {
		return true
	}
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// StatusOf extracts the upstream HTTP status from an error chain, or 0.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// Client issues JSON requests upstream with bounded retry. Transient
// statuses (429/502/503/504) and transport errors are retried up to
// maxRetries times with exponential backoff; everything else fails fast.
type Client struct {
	http    *http.Client
	logger  *zap.Logger
	retries int
	base    time.Duration
	max     time.Duration
}

// NewClient builds a Client. A nil logger disables retry logging.
func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
		retries: maxRetries,
		base:    backoffBase,
		max:     backoffCap,
	}
}

// GetJSON fetches url and decodes the response body into out. The source
// tag names the upstream in errors and logs.
func (c *Client) GetJSON(ctx context.Context, source, url string, headers map[string]string, out any) error {
	return c.do(ctx, source, http.MethodGet, url, nil, headers, out)
}

// PostJSON sends payload as a JSON body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, source, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", source, err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return c.do(ctx, source, http.MethodPost, url, body, headers, out)
}

func (c *Client) do(ctx context.Context, source, method, url string, body []byte, headers map[string]string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := backoff(c.base, c.max, attempt)
			c.logger.Debug("retrying upstream call",
				zap.String("source", source),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay))
			if err := sleep(ctx, delay); err != nil {
				return lastErr
			}
		}
		err := c.attempt(ctx, source, method, url, body, headers, out)
		if err == nil {
			return nil
		}
		lastErr = err
		var fe *Error
		if !errors.As(err, &fe) || !fe.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, source, method, url string, body []byte, headers map[string]string, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return &Error{Source: source, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Source: source, Err: err, transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &Error{
			Source: source,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("upstream %d: %s", resp.StatusCode, strings.TrimSpace(string(b))),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Source: source, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// backoff doubles the base delay per attempt, capped.
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
