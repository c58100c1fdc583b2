package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testRetryController(attempts int) RetryController {
	return RetryController{MaxAttempts: attempts, BaseDelay: time.Millisecond, Logger: observability.NewNopLogger()}
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	res := Run(context.Background(), testRetryController(3), "test", func(_ context.Context, attempt int) (string, error) {
		calls++
		assert.Equal(t, 1, attempt)
		return "ok", nil
	})
	assert.True(t, res.OK)
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, res.Message())
}

func TestRun_RecoversAfterFailures(t *testing.T) {
	var seen []int
	res := Run(context.Background(), testRetryController(3), "test", func(_ context.Context, attempt int) (int, error) {
		seen = append(seen, attempt)
		if attempt < 3 {
			return 0, contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "flaky %d", attempt)
		}
		return 42, nil
	})
	assert.True(t, res.OK)
	assert.Equal(t, 42, res.Value)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestRun_ExhaustedKeepsLastError(t *testing.T) {
	calls := 0
	res := Run(context.Background(), testRetryController(2), "test", func(_ context.Context, attempt int) (string, error) {
		calls++
		if attempt == 1 {
			return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "network down")
		}
		return "", contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "bad json")
	})
	require.False(t, res.OK)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, contextutils.IsSchema(res.Err))
	assert.Equal(t, "bad json", res.Message())
}

func TestRun_PlainErrorMessage(t *testing.T) {
	res := Run(context.Background(), testRetryController(1), "test", func(context.Context, int) (int, error) {
		return 0, errors.New("boom")
	})
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "boom", res.Message())
}

func TestRun_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	res := Run(context.Background(), RetryController{Logger: observability.NewNopLogger()}, "test", func(context.Context, int) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	assert.False(t, res.OK)
	assert.Equal(t, 1, calls)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := Run(ctx, testRetryController(3), "test", func(context.Context, int) (int, error) {
		calls++
		return 1, nil
	})
	assert.False(t, res.OK)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, contextutils.ErrorCodeTimeout, contextutils.GetErrorCode(res.Err))
}

func TestRun_CancelBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := RetryController{MaxAttempts: 5, BaseDelay: time.Hour, Logger: observability.NewNopLogger()}

	res := Run(ctx, rc, "test", func(context.Context, int) (int, error) {
		cancel()
		return 0, errors.New("fail")
	})
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.Attempts)
}

func TestRun_LogsEachFailedAttempt(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rc := RetryController{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: &observability.Logger{Logger: zap.New(core)}}

	Run(context.Background(), rc, "ocr", func(context.Context, int) (int, error) {
		return 0, errors.New("fail")
	})

	retries := logs.FilterMessage("Attempt failed, retrying").All()
	require.Len(t, retries, 2)
	assert.EqualValues(t, 1, retries[0].ContextMap()["attempt"])
	assert.Equal(t, "1ms", retries[0].ContextMap()["delay"])
	assert.EqualValues(t, 2, retries[1].ContextMap()["attempt"])
	assert.Equal(t, "2ms", retries[1].ContextMap()["delay"])
	assert.Equal(t, 1, logs.FilterMessage("All attempts failed").Len())
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, "transport", failureKind(contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "status 503")))
	assert.Equal(t, "schema", failureKind(contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "bad json")))
	assert.Equal(t, "timeout", failureKind(contextutils.ErrTimeout))
	assert.Equal(t, "other", failureKind(errors.New("boom")))
}

func TestRun_ExhaustedLogsFailureKind(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rc := RetryController{MaxAttempts: 1, BaseDelay: time.Millisecond, Logger: &observability.Logger{Logger: zap.New(core)}}

	Run(context.Background(), rc, "questions", func(context.Context, int) (int, error) {
		return 0, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "no questions")
	})

	exhausted := logs.FilterMessage("All attempts failed").All()
	require.Len(t, exhausted, 1)
	assert.Equal(t, "schema", exhausted[0].ContextMap()["failure_kind"])
}
