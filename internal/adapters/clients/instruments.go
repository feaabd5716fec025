package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jsamuelsen/quote-keeper/internal/adapters/clients"

// Values of the result metric attribute.
const (
	resultCircuitOpen = "circuit_open"
	resultCanceled    = "context_canceled"
	resultError       = "error"
)

// instruments holds the tracer and meters of one client.
type instruments struct {
	service  string
	tracer   trace.Tracer
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

func newInstruments(service string) (*instruments, error) {
	meter := otel.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of requests to the remote, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration metric: %w", err)
	}

	total, err := meter.Int64Counter(
		"http.client.request.total",
		metric.WithDescription("Requests to the remote by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}

	return &instruments{
		service:  service,
		tracer:   otel.Tracer(instrumentationName),
		duration: duration,
		total:    total,
	}, nil
}

func (in *instruments) startSpan(ctx context.Context, req *http.Request) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, fmt.Sprintf("HTTP %s %s", req.Method, in.service),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("peer.service", in.service),
		),
	)
}

func (in *instruments) fail(ctx context.Context, span trace.Span, method string, elapsed time.Duration, result string, err error) {
	span.SetStatus(codes.Error, err.Error())
	in.record(ctx, method, 0, elapsed, result)
}

func (in *instruments) succeed(ctx context.Context, span trace.Span, method string, status int, elapsed time.Duration) {
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(status))
	}

	in.record(ctx, method, status, elapsed, fmt.Sprintf("%dxx", status/100))
}

func (in *instruments) record(ctx context.Context, method string, status int, elapsed time.Duration, result string) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("peer.service", in.service),
		attribute.String("result", result),
	}

	if status > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", status))
	}

	opt := metric.WithAttributes(attrs...)
	in.duration.Record(ctx, elapsed.Seconds(), opt)
	in.total.Add(ctx, 1, opt)
}
