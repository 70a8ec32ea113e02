// Package request provides an HTTP client with per-provider queuing and retries.
package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"flightlogger/pkg/tracker"
	"flightlogger/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("FlightLogger/%s", version.Version)

// ErrMaxRetries is returned when every attempt hit a retryable failure.
var ErrMaxRetries = errors.New("max retries exceeded")

// StatusError is a non-retryable HTTP error response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error: status %d", e.Code)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Code, e.Body)
}

// Options tunes the client. Zero values use defaults.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	UserAgent   string
	Tracker     *tracker.Tracker // optional
}

// Client handles HTTP requests with queuing and backoff.
type Client struct {
	httpClient  *http.Client
	backoff     *ProviderBackoff
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	userAgent   string
	gap         time.Duration
	tracker     *tracker.Tracker

	// Queues per provider (domain)
	queues map[string]chan job
	mu     sync.Mutex // Protects queues map
}

// job represents a queued request.
type job struct {
	req      *http.Request
	headers  map[string]string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Client{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		backoff:     NewProviderBackoff(opts.BaseDelay, opts.MaxDelay),
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		userAgent:   opts.UserAgent,
		gap:         100 * time.Millisecond,
		tracker:     opts.Tracker,
		queues:      make(map[string]chan job),
	}
}

// Get performs a GET request with queuing.
func (c *Client) Get(ctx context.Context, u string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil)
}

// GetWithHeaders performs a GET request with custom headers.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, u, nil, headers)
}

// Post performs a POST request with queuing.
func (c *Client) Post(ctx context.Context, u string, body []byte, contentType string) ([]byte, error) {
	return c.PostWithHeaders(ctx, u, body, map[string]string{"Content-Type": contentType})
}

// PostWithHeaders performs a POST request with custom headers and queuing.
func (c *Client) PostWithHeaders(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body, headers)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, headers map[string]string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := normalizeProvider(parsedURL.Host)

	var rd io.Reader = http.NoBody
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respChan := make(chan jobResult, 1)
	c.dispatch(provider, job{req: req, headers: headers, respChan: respChan})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

func normalizeProvider(host string) string {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	switch {
	case host == "discord.com" || strings.HasSuffix(host, ".discord.com"),
		host == "discordapp.com" || strings.HasSuffix(host, ".discordapp.com"):
		return "discord"
	case strings.HasSuffix(host, "githubusercontent.com") || host == "github.com":
		return "github"
	}
	return host
}

// dispatch sends the job to the provider's queue, creating the queue/worker if needed.
func (c *Client) dispatch(provider string, j job) {
	c.mu.Lock()
	q, ok := c.queues[provider]
	if !ok {
		q = make(chan job, 100)
		c.queues[provider] = q
		go c.worker(provider, q)
	}
	c.mu.Unlock()

	// Blocks if the queue is full, throttling the caller.
	select {
	case q <- j:
	case <-j.req.Context().Done():
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		if j.req.Context().Err() != nil {
			slog.Warn("Job dropped from queue (context expired)", "provider", provider, "error", j.req.Context().Err())
			j.respChan <- jobResult{err: j.req.Context().Err()}
			continue
		}

		uaMatch := false
		for k, v := range j.headers {
			j.req.Header.Set(k, v)
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				uaMatch = true
			}
		}
		if !uaMatch {
			j.req.Header.Set("User-Agent", c.userAgent)
		}

		if err := c.backoff.Wait(j.req.Context(), provider); err != nil {
			j.respChan <- jobResult{err: err}
			continue
		}

		body, err := c.executeWithBackoff(j.req)
		if err == nil {
			c.backoff.RecordSuccess(provider)
			if c.tracker != nil {
				c.tracker.TrackAPISuccess(provider)
			}
		} else if j.req.Context().Err() == nil {
			c.backoff.RecordFailure(provider)
			if c.tracker != nil {
				c.tracker.TrackAPIFailure(provider)
			}
		}

		j.respChan <- jobResult{body: body, err: err}

		// Safety gap against rate limits
		time.Sleep(c.gap)
	}
}

// executeWithBackoff attempts the request with exponential backoff on retryable errors.
func (c *Client) executeWithBackoff(req *http.Request) ([]byte, error) {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		if attempt > 0 && c.tracker != nil {
			c.tracker.TrackRetry(normalizeProvider(req.URL.Host))
		}
		if attempt > 0 && req.GetBody != nil {
			b, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to rewind body: %w", err)
			}
			req.Body = b
		}

		slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		resp, err := c.httpClient.Do(req)

		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			slog.Warn("Request failed", "host", req.URL.Host, "attempt", attempt+1, "error", err)
			if attempt+1 >= c.maxAttempts {
				return nil, fmt.Errorf("%w: %v", ErrMaxRetries, err)
			}
			if err := c.sleep(req.Context(), c.retryDelay(attempt, nil)); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode < 600) {
			resp.Body.Close()
			slog.Warn("API Backoff", "status", resp.StatusCode, "host", req.URL.Host, "attempt", attempt+1)
			if attempt+1 >= c.maxAttempts {
				return nil, fmt.Errorf("%w: status %d", ErrMaxRetries, resp.StatusCode)
			}
			if err := c.sleep(req.Context(), c.retryDelay(attempt, resp)); err != nil {
				return nil, err
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		if resp.StatusCode >= 400 {
			return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
		}
		return body, nil
	}

	return nil, ErrMaxRetries
}

// retryDelay honors Retry-After when the server sends one.
func (c *Client) retryDelay(attempt int, resp *http.Response) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
	if resp != nil {
		if s, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && s >= 0 {
			delay = time.Duration(s * float64(time.Second))
		}
	}
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
