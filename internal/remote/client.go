// Package remote is the client for the remote counter service.
//
// The service is a plain key-value store over HTTP: GET returns the raw value
// (an empty body for unknown keys), PUT replaces it, DELETE removes it. The
// client layers three behaviors on top:
//
//   - a per-request timeout enforced through context cancellation
//   - retry with exponential backoff, base × 2^attempt
//   - an availability breaker: after FailureThreshold calls exhaust their
//     retries, every call short-circuits with ErrUnavailable until some call
//     succeeds again
//
// The breaker has no recovery timer. Probe bypasses it, and a successful
// Probe closes it.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/dotheat/internal/record"
	"github.com/roach88/dotheat/internal/sched"
)

// Defaults for Options fields left zero.
const (
	DefaultTimeout          = 10 * time.Second
	DefaultMaxAttempts      = 3
	DefaultBaseDelay        = 500 * time.Millisecond
	DefaultMaxDelay         = 8 * time.Second
	DefaultFailureThreshold = 3
)

// ProbeKey is the key read by Probe.
const ProbeKey = "heat_probe"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 1 << 20

// Options configures a Client.
type Options struct {
	// BaseURL is the service root; keys are appended as a path segment.
	BaseURL string

	// Token, if set, is sent as a bearer token.
	Token string

	Timeout          time.Duration
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	FailureThreshold int

	HTTPClient *http.Client
	Scheduler  sched.Scheduler
	Logger     *slog.Logger

	// OnTrip is called each time the breaker opens.
	OnTrip func()
}

// Status is a snapshot of the breaker.
type Status struct {
	Available bool `json:"available"`
	Failures  int  `json:"failures"`
}

// Client talks to the remote counter service. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	opts    Options
	http    *http.Client
	sched   sched.Scheduler
	logger  *slog.Logger
	beacons sync.WaitGroup

	mu        sync.Mutex
	available bool
	failures  int
}

// New creates a Client. The breaker starts closed (available).
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("remote: base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", base.Scheme)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}

	c := &Client{
		base:      base,
		opts:      opts,
		http:      opts.HTTPClient,
		sched:     opts.Scheduler,
		logger:    opts.Logger,
		available: true,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.sched == nil {
		c.sched = sched.Real{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Available reports whether calls are currently allowed through.
func (c *Client) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

// Status returns the breaker state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Available: c.available, Failures: c.failures}
}

// Request performs method on key with retries. body is sent for PUT.
// It returns ErrUnavailable without network I/O while the breaker is open.
func (c *Client) Request(ctx context.Context, method, key, body string) (string, error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.opts.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         c.opts.MaxDelay,
	}
	b.Reset()

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := b.NextBackOff()
			c.logger.Debug("retrying remote call", "method", method, "key", key, "attempt", attempt+1, "delay", delay)
			if err := c.sched.Sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		text, err := c.once(ctx, method, key, body)
		if err == nil {
			c.recordSuccess()
			return text, nil
		}
		lastErr = err

		// The caller gave up; that says nothing about the service.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	c.recordFailure(method, key, lastErr)
	return "", lastErr
}

// Get reads the count stored under key. Missing or unparseable values are 0.
func (c *Client) Get(ctx context.Context, key string) (int, error) {
	text, err := c.Request(ctx, http.MethodGet, key, "")
	if err != nil {
		return 0, err
	}
	return record.Count(text), nil
}

// Put replaces the value under key with the serialized record.
func (c *Client) Put(ctx context.Context, key string, rec record.ClickRecord) error {
	_, err := c.Request(ctx, http.MethodPut, key, record.Encode(rec))
	return err
}

// Delete removes key. Failures are logged and not returned.
func (c *Client) Delete(ctx context.Context, key string) {
	if _, err := c.Request(ctx, http.MethodDelete, key, ""); err != nil {
		c.logger.Warn("remote delete failed", "key", key, "error", err)
	}
}

// Probe makes a single GET that ignores the breaker. Success closes the
// breaker; failure leaves the failure count untouched.
func (c *Client) Probe(ctx context.Context) error {
	if _, err := c.once(ctx, http.MethodGet, ProbeKey, ""); err != nil {
		return err
	}
	c.recordSuccess()
	return nil
}

// Send delivers rec under key without waiting for the response. There is no
// retry and the result does not touch the breaker. While the breaker is open
// Send refuses the write and returns false.
func (c *Client) Send(key string, rec record.ClickRecord) bool {
	if !c.Available() {
		return false
	}
	body := record.Encode(rec)
	c.beacons.Add(1)
	go func() {
		defer c.beacons.Done()
		if _, err := c.once(context.Background(), http.MethodPut, key, body); err != nil {
			c.logger.Debug("beacon delivery failed", "key", key, "error", err)
		}
	}()
	return true
}

// Drain waits up to timeout for outstanding Send deliveries. It reports
// whether all of them finished.
func (c *Client) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.beacons.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// once performs a single attempt bounded by the per-request timeout.
func (c *Client) once(ctx context.Context, method, key, body string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.base.JoinPath(key).String(), reader)
	if err != nil {
		return "", &NetworkError{Op: method, Key: key, Err: err}
	}
	if body != "" {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", &NetworkError{Op: method, Key: key, Timeout: true, Err: err}
		}
		return "", &NetworkError{Op: method, Key: key, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &NetworkError{Op: method, Key: key, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &NetworkError{Op: method, Key: key, Status: resp.StatusCode}
	}
	return string(data), nil
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	recovered := !c.available
	c.available = true
	c.failures = 0
	c.mu.Unlock()

	if recovered {
		c.logger.Info("remote counter service available again")
	}
}

func (c *Client) recordFailure(method, key string, err error) {
	c.mu.Lock()
	c.failures++
	failures := c.failures
	tripped := c.available && failures >= c.opts.FailureThreshold
	if tripped {
		c.available = false
	}
	c.mu.Unlock()

	c.logger.Warn("remote call failed after retries",
		"method", method,
		"key", key,
		"failures", failures,
		"error", err,
	)
	if tripped {
		c.logger.Error("remote counter service marked unavailable", "failures", failures)
		if c.opts.OnTrip != nil {
			c.opts.OnTrip()
		}
	}
}
