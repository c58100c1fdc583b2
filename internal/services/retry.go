package services

import (
	"context"
	"errors"
	"time"

	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RetryController runs an operation up to MaxAttempts times, waiting
// BaseDelay * 2^i between attempts and never after the last one.
type RetryController struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *observability.Logger
}

// Result is the outcome of a retried operation. Exactly one of Value and Err is meaningful.
type Result[T any] struct {
	Value    T
	Err      error
	Attempts int
	OK       bool
}

// Message returns the last error's user-facing text, or "" on success.
func (r Result[T]) Message() string {
	if r.Err == nil {
		return ""
	}
	var appErr *contextutils.AppError
	if contextutils.AsError(r.Err, &appErr) {
		return appErr.Message
	}
	return r.Err.Error()
}

// AIFailure returns Err as an AppError. A plain error from the provider is
// reported as AI_REQUEST_FAILED instead of an internal error.
func (r Result[T]) AIFailure() error {
	if r.Err == nil {
		return nil
	}
	var appErr *contextutils.AppError
	if contextutils.AsError(r.Err, &appErr) {
		return r.Err
	}
	return contextutils.NewAppErrorWithCause(contextutils.ErrorCodeAIRequestFailed, contextutils.SeverityError,
		contextutils.ErrAIRequestFailed.Message, r.Err.Error(), r.Err)
}

func (rc RetryController) backOff() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = rc.BaseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = rc.BaseDelay << uint(rc.MaxAttempts)
	return eb
}

// Run calls fn with a 1-based attempt number until it succeeds or the attempts
// are exhausted. Every error kind is retried. Cancelling ctx ends the loop with
// a failed result.
func Run[T any](ctx context.Context, rc RetryController, name string, fn func(ctx context.Context, attempt int) (T, error)) (result Result[T]) {
	maxAttempts := rc.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempt := 0
	operation := func() (T, error) {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		attempt++
		return fn(ctx, attempt)
	}

	notify := func(err error, next time.Duration) {
		rc.Logger.Warn(ctx, "Attempt failed, retrying", map[string]interface{}{
			"operation":    name,
			"attempt":      attempt,
			"max_attempts": maxAttempts,
			"delay":        next.String(),
			"error":        err.Error(),
		})
	}

	value, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(rc.backOff()),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(notify),
	)

	result.Attempts = attempt
	if err == nil {
		result.Value = value
		result.OK = true
		return result
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = contextutils.WrapErrorf(contextutils.ErrTimeout, "%s cancelled after %d attempt(s): %s", name, attempt, err.Error())
	}
	result.Err = err

	rc.Logger.Warn(ctx, "All attempts failed", map[string]interface{}{
		"operation":    name,
		"attempts":     attempt,
		"failure_kind": failureKind(err),
		"error":        err.Error(),
	})
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("retry.operation", name), observability.AttributeAttempt(attempt))
	return result
}

// failureKind names the class of the last error for logs.
func failureKind(err error) string {
	switch {
	case contextutils.IsTransport(err):
		return "transport"
	case contextutils.IsSchema(err):
		return "schema"
	case contextutils.GetErrorCode(err) == contextutils.ErrorCodeTimeout:
		return "timeout"
	default:
		return "other"
	}
}
