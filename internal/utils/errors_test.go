package contextutils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name: "error with details",
			appError: &AppError{
				Code:     ErrorCodeInvalidInput,
				Severity: SeverityWarn,
				Message:  "Invalid input",
				Details:  "text must be at least 20 characters",
			},
			expected: "INVALID_INPUT: Invalid input - text must be at least 20 characters",
		},
		{
			name: "error without details",
			appError: &AppError{
				Code:     ErrorCodeAIRequestFailed,
				Severity: SeverityError,
				Message:  "AI request failed",
			},
			expected: "AI_REQUEST_FAILED: AI request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appError.Error())
		})
	}
}

func TestAppError_IsThroughWrapping(t *testing.T) {
	err := WrapErrorf(ErrAIRequestFailed, "gemini call failed: %s", "503")
	assert.True(t, errors.Is(err, ErrAIRequestFailed))
	assert.False(t, errors.Is(err, ErrAIResponseInvalid))

	wrapped := fmt.Errorf("attempt 2: %w", err)
	assert.True(t, IsTransport(wrapped))
	assert.Equal(t, ErrorCodeAIRequestFailed, GetErrorCode(wrapped))
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ctx"))

	plain := WrapError(errors.New("boom"), "loading config")
	var appErr *AppError
	require.True(t, AsError(plain, &appErr))
	assert.Equal(t, ErrorCodeInternalError, appErr.Code)
	assert.Equal(t, "loading config", appErr.Message)
	assert.Equal(t, "boom", appErr.Details)

	fromSentinel := WrapErrorf(ErrInvalidInput, "unknown subject '%s'", "music")
	require.True(t, AsError(fromSentinel, &appErr))
	assert.Equal(t, ErrorCodeInvalidInput, appErr.Code)
	assert.Equal(t, "unknown subject 'music'", appErr.Details)

	twice := WrapError(WrapError(errors.New("disk full"), "writing sessions"), "saving session")
	require.True(t, AsError(twice, &appErr))
	assert.Equal(t, "saving session", appErr.Message)
	assert.Equal(t, "writing sessions: disk full", appErr.Details)

	kept := WrapError(ErrQuotaExceeded, "saving session")
	assert.True(t, IsQuota(kept))
	assert.Equal(t, SeverityWarn, GetErrorSeverity(kept))
}

func TestWrapErrorf_PercentW(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapErrorf(cause, "call failed: %w", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsValidation(ErrInvalidInput))
	assert.True(t, IsValidation(WrapError(ErrPayloadTooLarge, "upload")))
	assert.False(t, IsValidation(ErrAIRequestFailed))
	assert.True(t, IsSchema(WrapError(ErrAIResponseInvalid, "parse")))
	assert.False(t, IsQuota(errors.New("disk full")))
	assert.False(t, IsValidation(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrAIRequestFailed))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.False(t, IsRetryable(ErrInvalidInput))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(&AppError{Code: ErrorCodeTimeout, Severity: SeverityFatal}))
}

func TestAppError_ToJSON(t *testing.T) {
	err := NewAppErrorWithCause(ErrorCodeAIResponseInvalid, SeverityError,
		"問題生成中にエラーが発生しました", "no questions in response", errors.New("empty list"))

	body := err.ToJSON()
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "問題生成中にエラーが発生しました", body["error"])
	assert.Equal(t, "no questions in response", body["details"])
	assert.Equal(t, "AI_RESPONSE_INVALID", body["code"])
	assert.Equal(t, true, body["retryable"])
	assert.Equal(t, "empty list", body["cause"])
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetRequestIDFromContext(ctx))
	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", GetRequestIDFromContext(ctx))
}
