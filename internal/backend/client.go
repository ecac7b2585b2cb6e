// Package backend is the HTTP client for the story-generation backend.
//
// Idempotent reads (status, story, config) are retried with backoff.
// Generate calls are billable and non-idempotent, so they are made exactly
// once; their failures surface as *UnitError for the caller to count.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout       = 10 * time.Minute
	defaultStatusRetries = 3
	defaultRetryDelay    = 500 * time.Millisecond
)

// Config configures a backend client.
type Config struct {
	BaseURL           string        // e.g. http://127.0.0.1:5000
	Timeout           time.Duration // Per-request timeout (default 10m; video calls are slow)
	RequestsPerSecond float64       // Outbound pacing (0 = unlimited)
	StatusRetries     int           // Attempts for idempotent GETs (default 3)
	RetryDelay        time.Duration // Base backoff for idempotent GETs
	HTTPClient        *http.Client  // Optional (tests)
	Logger            *slog.Logger
}

// Client talks to the backend REST API.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	limiter       *rate.Limiter
	statusRetries int
	retryDelay    time.Duration
	logger        *slog.Logger
}

// New creates a new backend client.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.StatusRetries <= 0 {
		cfg.StatusRetries = defaultStatusRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    httpClient,
		limiter:       limiter,
		statusRetries: cfg.StatusRetries,
		retryDelay:    cfg.RetryDelay,
		logger:        logger.With("component", "backend"),
	}
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// envelope is the common {success, error, message} response shape.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// failed reports whether the body explicitly declares failure.
func (e envelope) failed() bool {
	return e.Success != nil && !*e.Success
}

// get performs a GET with retries and returns the raw body.
// 4xx responses are not retried.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			b, err := c.do(ctx, http.MethodGet, path, nil)
			if err != nil {
				var httpErr *HTTPError
				if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
					return retry.Unrecoverable(err)
				}
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.statusRetries)),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying backend read", "path", path, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// post performs a single POST and returns the raw body.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var env envelope
		if json.Unmarshal(body, &env) == nil && env.Error != "" {
			return body, &HTTPError{StatusCode: resp.StatusCode, Message: env.Error}
		}
		return body, &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return body, nil
}
