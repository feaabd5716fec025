package clients

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestNewRetryPolicy(t *testing.T) {
	p := newRetryPolicy(config.RetryConfig{Multiplier: 0.5})

	assert.Equal(t, 1, p.attempts)
	assert.InDelta(t, 1.0, p.multiplier, 0)
	assert.InDelta(t, defaultJitterFactor, p.jitter, 0)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := newRetryPolicy(config.RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
		JitterFactor:    0.5,
	})

	tests := []struct {
		name string
		roll float64
		n    int
		prev error
		want time.Duration
	}{
		{name: "first retry", roll: 0.5, n: 1, want: 100 * time.Millisecond},
		{name: "grows", roll: 0.5, n: 3, want: 400 * time.Millisecond},
		{name: "capped", roll: 0.5, n: 10, want: time.Second},
		{name: "low jitter", roll: 0, n: 1, want: 50 * time.Millisecond},
		{name: "high jitter", roll: 1, n: 1, want: 150 * time.Millisecond},
		{
			name: "retry-after wins",
			roll: 0.5,
			n:    3,
			prev: &retryAfterError{status: 503, wait: 7 * time.Second},
			want: 7 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.roll = func() float64 { return tt.roll }

			assert.Equal(t, tt.want, p.delay(tt.n, tt.prev))
		})
	}
}

func TestRetryPolicy_Classify(t *testing.T) {
	p := newRetryPolicy(config.RetryConfig{MaxAttempts: 3})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	respWith := func(code int, retryAfter string) *http.Response {
		resp := &http.Response{StatusCode: code, Header: http.Header{}, Body: http.NoBody}
		if retryAfter != "" {
			resp.Header.Set("Retry-After", retryAfter)
		}

		return resp
	}

	tests := []struct {
		name      string
		ctx       context.Context
		resp      *http.Response
		err       error
		wantRetry bool
		wantErr   bool
	}{
		{name: "ok", ctx: context.Background(), resp: respWith(200, "")},
		{name: "bad request", ctx: context.Background(), resp: respWith(400, "")},
		{name: "server error", ctx: context.Background(), resp: respWith(502, ""), wantRetry: true, wantErr: true},
		{name: "rate limited", ctx: context.Background(), resp: respWith(429, "1"), wantRetry: true, wantErr: true},
		{name: "transport timeout", ctx: context.Background(), err: timeoutErr{}, wantRetry: true, wantErr: true},
		{name: "timeout after context ended", ctx: canceled, err: timeoutErr{}, wantErr: true},
		{name: "other error", ctx: context.Background(), err: errors.New("bad url"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, err := p.classify(tt.ctx, tt.resp, tt.err)

			assert.Equal(t, tt.wantRetry, retry)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestRetryPolicy_ClassifyKeepsRetryAfter(t *testing.T) {
	p := newRetryPolicy(config.RetryConfig{MaxAttempts: 3})
	resp := &http.Response{StatusCode: 503, Header: http.Header{"Retry-After": {"2"}}, Body: http.NoBody}

	_, err := p.classify(context.Background(), resp, nil)

	var ra *retryAfterError
	if assert.ErrorAs(t, err, &ra) {
		assert.Equal(t, 2*time.Second, ra.wait)
		assert.Equal(t, 503, ra.status)
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "timeout", err: timeoutErr{}, want: true},
		{name: "connection refused", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, want: true},
		{name: "canceled", err: context.Canceled},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryableError(tt.err))
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		want   time.Duration
		wantOK bool
	}{
		{name: "empty", value: ""},
		{name: "garbage", value: "soon"},
		{name: "seconds", value: "3", want: 3 * time.Second, wantOK: true},
		{name: "capped", value: "3600", want: maxRetryAfter, wantOK: true},
		{name: "negative", value: "-5", want: 0, wantOK: true},
		{name: "date in the past", value: "Mon, 02 Jan 2006 15:04:05 GMT", want: 0, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRetryAfter(tt.value)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
