package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

// Operations that touch remote data run as Validate → Perform → Verify →
// Archive → Respond. Nothing is persisted until the performed result has been
// verified, so a failed or malformed fetch never reaches the collection.

const executorTracerName = "github.com/jsamuelsen/quote-keeper/internal/app"

// ExecutionStep names a step of an operation.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError records the step an operation failed in.
// It unwraps to the cause, so domain.IsNetwork and friends see through it.
type ExecutionError struct {
	Operation string
	Step      ExecutionStep
	Cause     error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Cause)
	}

	return fmt.Sprintf("%s: %s failed: %v", e.Operation, e.Step, e.Cause)
}

// Unwrap returns the cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Executor runs operations step by step, logging and tracing each one.
type Executor struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// NewExecutor creates an executor. A nil logger falls back to slog.Default.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		logger: logger,
		tracer: otel.Tracer(executorTracerName),
	}
}

// Operation holds the step functions. Nil steps are skipped; a nil Verify
// requires P and V to be the same type.
type Operation[I, P, V, O any] struct {
	// Name identifies the operation in logs and spans.
	Name string

	// Validate rejects bad input before anything else runs.
	Validate func(ctx context.Context, input I) error

	// Perform does the work, typically a remote call.
	Perform func(ctx context.Context, input I) (P, error)

	// Verify checks and normalizes what Perform produced.
	Verify func(ctx context.Context, input I, performed P) (V, error)

	// Archive persists the verified result.
	Archive func(ctx context.Context, input I, verified V) error

	// Respond shapes the result for the caller.
	Respond func(ctx context.Context, input I, verified V) (O, error)
}

// Execute runs op with input. The first failing step stops the run and is
// returned as an *ExecutionError.
func Execute[I, P, V, O any](ctx context.Context, exec *Executor, op Operation[I, P, V, O], input I) (O, error) {
	var zero O

	logger := exec.logger
	if scoped, ok := logging.Lookup(ctx); ok {
		logger = scoped
	}

	logger = logger.With(slog.String("operation", op.Name))

	ctx, span := exec.tracer.Start(ctx, op.Name, trace.WithAttributes(
		attribute.String("operation.name", op.Name),
	))
	defer span.End()

	start := time.Now()

	fail := func(step ExecutionStep, err error) error {
		logger.WarnContext(ctx, "operation step failed",
			slog.String("step", string(step)),
			slog.Any("error", err),
		)

		span.RecordError(err)
		span.SetStatus(codes.Error, string(step)+" failed")
		span.SetAttributes(attribute.String("operation.failed_step", string(step)))

		return &ExecutionError{Operation: op.Name, Step: step, Cause: err}
	}

	step := func(s ExecutionStep) {
		logger.Log(ctx, logging.LevelTrace, "operation step", slog.String("step", string(s)))
		span.AddEvent(string(s))
	}

	if op.Validate != nil {
		step(StepValidate)

		if err := op.Validate(ctx, input); err != nil {
			return zero, fail(StepValidate, err)
		}
	}

	var performed P

	if op.Perform != nil {
		step(StepPerform)

		var err error

		performed, err = op.Perform(ctx, input)
		if err != nil {
			return zero, fail(StepPerform, err)
		}
	}

	var verified V

	if op.Verify != nil {
		step(StepVerify)

		var err error

		verified, err = op.Verify(ctx, input, performed)
		if err != nil {
			return zero, fail(StepVerify, err)
		}
	} else if v, ok := any(performed).(V); ok {
		verified = v
	}

	if op.Archive != nil {
		step(StepArchive)

		if err := op.Archive(ctx, input, verified); err != nil {
			return zero, fail(StepArchive, err)
		}
	}

	result := zero

	if op.Respond != nil {
		step(StepRespond)

		var err error

		result, err = op.Respond(ctx, input, verified)
		if err != nil {
			return zero, fail(StepRespond, err)
		}
	}

	span.SetStatus(codes.Ok, "")
	logger.DebugContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return result, nil
}

// GetExecutionStep reports the step an execution error occurred in.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}
