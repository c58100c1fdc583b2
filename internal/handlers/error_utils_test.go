package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "learnapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveError(t *testing.T, handler gin.HandlerFunc) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/test", handler)

	req, _ := http.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w.Code, response
}

func TestStandardizeHTTPError(t *testing.T) {
	code, response := serveError(t, func(c *gin.Context) {
		StandardizeHTTPError(c, http.StatusBadRequest, "Invalid input", "Field 'text' is required")
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid input", response["error"])
	assert.Equal(t, "Field 'text' is required", response["details"])
	assert.Equal(t, "INVALID_INPUT", response["code"])
	assert.Equal(t, false, response["success"])
}

func TestStandardizeHTTPError_PayloadTooLarge(t *testing.T) {
	code, response := serveError(t, func(c *gin.Context) {
		StandardizeHTTPError(c, http.StatusRequestEntityTooLarge, "Too big", "")
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", response["code"])
	assert.NotContains(t, response, "details")
}

func TestHandleAppError_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", contextutils.WrapErrorf(contextutils.ErrInvalidInput, "bad subject"), http.StatusBadRequest},
		{"missing", contextutils.ErrMissingRequired, http.StatusBadRequest},
		{"too large", contextutils.WrapError(contextutils.ErrPayloadTooLarge, "big"), http.StatusRequestEntityTooLarge},
		{"not found", contextutils.ErrRecordNotFound, http.StatusNotFound},
		{"transport", contextutils.WrapError(contextutils.ErrAIRequestFailed, "503"), http.StatusInternalServerError},
		{"schema", contextutils.ErrAIResponseInvalid, http.StatusInternalServerError},
		{"timeout", contextutils.ErrTimeout, http.StatusInternalServerError},
		{"service unavailable", contextutils.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := serveError(t, func(c *gin.Context) { HandleAppError(c, tt.err) })
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestHandleFailure(t *testing.T) {
	code, response := serveError(t, func(c *gin.Context) {
		HandleFailure(c, contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "gemini API error: overloaded"), "問題生成中にエラーが発生しました")
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "問題生成中にエラーが発生しました", response["error"])
	assert.Contains(t, response["details"], "overloaded")
	assert.Equal(t, true, response["retryable"])

	code, response = serveError(t, func(c *gin.Context) {
		HandleFailure(c, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "テキストが短すぎます"), "問題生成中にエラーが発生しました")
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "テキストが短すぎます", response["error"])
}
