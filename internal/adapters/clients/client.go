package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "quote-keeper"
)

// Config configures a Client.
type Config struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// ServiceName names the remote in logs, spans, metrics and health checks.
	// Required.
	ServiceName string

	// Timeout bounds a single attempt. Retries and backoff come on top.
	Timeout time.Duration

	Retry     config.RetryConfig
	Circuit   config.CircuitBreakerConfig
	Transport config.TransportConfig

	// AuthFunc, when set, decorates every attempt, including retries.
	AuthFunc func(*http.Request)

	Logger *slog.Logger
}

// Client sends requests to one remote service. Each call passes the circuit
// breaker, is retried with backoff on transient failures, carries the
// caller's request and correlation IDs, and is traced and measured.
type Client struct {
	http        *http.Client
	baseURL     string
	serviceName string
	authFunc    func(*http.Request)
	retry       retryPolicy
	cb          *CircuitBreaker
	inst        *instruments
	logger      *slog.Logger
}

// New creates a client. ServiceName is required.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.ServiceName == "" {
		return nil, errors.New("service name is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("downstream", cfg.ServiceName))

	inst, err := newInstruments(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	cb := NewCircuitBreaker(cfg.Circuit)
	cb.OnStateChange(func(from, to State) {
		logger.Warn("circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: newTransport(cfg.Transport),
		},
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		serviceName: cfg.ServiceName,
		authFunc:    cfg.AuthFunc,
		retry:       newRetryPolicy(cfg.Retry),
		cb:          cb,
		inst:        inst,
		logger:      logger,
	}, nil
}

// newTransport clones the default transport with the configured pool sizes.
// Zero fields fall back to the config defaults.
func newTransport(tc config.TransportConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = positiveOr(tc.MaxIdleConns, config.DefaultTransportMaxIdleConns)
	transport.MaxIdleConnsPerHost = positiveOr(tc.MaxIdleConnsPerHost, config.DefaultTransportMaxIdleConnsPerHost)
	transport.IdleConnTimeout = positiveOr(tc.IdleConnTimeout, config.DefaultTransportIdleConnTimeout)

	return transport
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}

	return fallback
}

// Get performs a GET on path.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	return c.Do(ctx, req)
}

// PostJSON performs a POST on path with v encoded as the JSON body. The body
// is replayed on retries.
func (c *Client) PostJSON(ctx context.Context, path string, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return c.Do(ctx, req)
}

// Do sends req through the breaker and the retry loop.
//
// The returned error is ErrCircuitOpen when the breaker rejected the call,
// ctx.Err() when ctx ended during backoff, and ErrMaxRetriesExceeded wrapping
// the last failure otherwise. Any response that arrives, 4xx included, is
// returned without error. An http.Client timeout counts as a failed attempt
// and is retried. A request body is only resent when req.GetBody is
// set.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).With(
		slog.String("downstream", c.serviceName),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	if !c.cb.Allow() {
		c.inst.record(ctx, req.Method, 0, time.Since(start), resultCircuitOpen)
		logger.WarnContext(ctx, "request blocked by circuit breaker")

		return nil, ErrCircuitOpen
	}

	ctx, span := c.inst.startSpan(ctx, req)
	defer span.End()

	c.setHeaders(ctx, req)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.send(ctx, req, logger)
	elapsed := time.Since(start)

	switch {
	case err != nil && ctx.Err() != nil:
		c.cb.RecordFailure()
		c.inst.fail(ctx, span, req.Method, elapsed, resultCanceled, err)

		return nil, err

	case err != nil:
		c.cb.RecordFailure()
		c.inst.fail(ctx, span, req.Method, elapsed, resultError, err)
		logger.ErrorContext(ctx, "request failed",
			slog.Duration("duration", elapsed),
			slog.Any("error", err),
		)

		return nil, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
	}

	c.cb.RecordSuccess()
	c.inst.succeed(ctx, span, req.Method, resp.StatusCode, elapsed)
	logger.DebugContext(ctx, "request completed",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", elapsed),
	)

	return resp, nil
}

// send runs the attempts. A context error during backoff is returned as is.
func (c *Client) send(ctx context.Context, req *http.Request, logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := range c.retry.attempts {
		if attempt > 0 {
			if !replayable(req) {
				break
			}

			if err := c.rewind(ctx, req, c.retry.delay(attempt, lastErr)); err != nil {
				return nil, err
			}

			logger.DebugContext(ctx, "retrying request", slog.Int("attempt", attempt+1))
		}

		resp, err := c.http.Do(req.WithContext(ctx))

		retry, err := c.retry.classify(ctx, resp, err)
		if !retry {
			if err != nil {
				return nil, err
			}

			return resp, nil
		}

		lastErr = err
		logger.DebugContext(ctx, "attempt failed", slog.Int("attempt", attempt+1), slog.Any("error", err))
	}

	return nil, lastErr
}

// rewind waits out the backoff and prepares req to be sent again.
func (c *Client) rewind(ctx context.Context, req *http.Request, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return fmt.Errorf("rewinding request body: %w", err)
		}

		req.Body = body
	}

	// Credentials may have rotated since the last attempt.
	if c.authFunc != nil {
		c.authFunc(req)
	}

	return nil
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// setHeaders adds identification, the caller's IDs, and auth.
func (c *Client) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("User-Agent", userAgent)

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	if id := middleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderRequestID, id)
	}

	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderCorrelationID, id)
	}

	if c.authFunc != nil {
		c.authFunc(req)
	}
}

func (c *Client) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.baseURL + path
}

// ServiceName returns the remote's name.
func (c *Client) ServiceName() string {
	return c.serviceName
}

// CircuitState returns the breaker state.
func (c *Client) CircuitState() State {
	return c.cb.State()
}
