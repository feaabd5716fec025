package clients

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
)

const (
	defaultJitterFactor = 0.25

	// maxRetryAfter caps how long a Retry-After header can stall a retry.
	maxRetryAfter = 30 * time.Second
)

// retryPolicy decides which attempts are retried and how long to wait.
type retryPolicy struct {
	attempts   int
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
	roll       func() float64
}

func newRetryPolicy(rc config.RetryConfig) retryPolicy {
	p := retryPolicy{
		attempts:   max(rc.MaxAttempts, 1),
		initial:    rc.InitialInterval,
		max:        rc.MaxInterval,
		multiplier: rc.Multiplier,
		jitter:     rc.JitterFactor,
		roll:       rand.Float64,
	}

	if p.jitter <= 0 {
		p.jitter = defaultJitterFactor
	}

	if p.multiplier < 1 {
		p.multiplier = 1
	}

	return p
}

// retryAfterError is a retryable status whose response named a wait.
type retryAfterError struct {
	status int
	wait   time.Duration
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("server error: %d, retry after %s", e.status, e.wait)
}

// classify inspects one attempt. Transport timeouts and connection errors,
// 5xx and 429 are retried. For a retried status the response is closed and
// an error describing it is returned.
// Nothing is retried once ctx is done.
func (p retryPolicy) classify(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil {
		return ctx.Err() == nil && retryableError(err), err
	}

	if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
		return false, nil
	}

	_ = resp.Body.Close()

	if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
		return true, &retryAfterError{status: resp.StatusCode, wait: wait}
	}

	return true, fmt.Errorf("server error: %d", resp.StatusCode)
}

// delay returns the wait before retry n (from 1): initial grown by multiplier
// per retry, capped at max, with symmetric jitter. A Retry-After from the previous
// response takes precedence.
func (p retryPolicy) delay(n int, prev error) time.Duration {
	var ra *retryAfterError
	if errors.As(prev, &ra) {
		return ra.wait
	}

	backoff := float64(p.initial) * math.Pow(p.multiplier, float64(n-1))
	if p.max > 0 {
		backoff = math.Min(backoff, float64(p.max))
	}

	backoff += backoff * p.jitter * (p.roll()*2 - 1)

	return time.Duration(backoff)
}

func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}

// parseRetryAfter reads delay-seconds or an HTTP date.
func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}

	var wait time.Duration

	if secs, err := strconv.Atoi(v); err == nil {
		wait = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		wait = time.Until(at)
	} else {
		return 0, false
	}

	return min(max(wait, 0), maxRetryAfter), true
}
