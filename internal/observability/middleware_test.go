package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	contextutils "learnapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func setupTestTracer() func() {
	// Set up a no-op tracer provider for testing
	tp := noop.NewTracerProvider()
	otel.SetTracerProvider(tp)

	// Return cleanup function
	return func() {
		otel.SetTracerProvider(nil)
	}
}

func setupGin() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestGinMiddleware_BasicFunctionality(t *testing.T) {
	// Set up test tracer
	cleanup := setupTestTracer()
	defer cleanup()

	// Set up a simple Gin router with OpenTelemetry middleware
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware("test-service"))

	// Add a test endpoint
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "middleware working",
		})
	})

	// Test that the middleware doesn't crash and returns expected response
	req, _ := http.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "middleware working", resp["message"])
}

func TestGinMiddleware_TraceHeadersPropagation(t *testing.T) {
	// Set up test tracer
	cleanup := setupTestTracer()
	defer cleanup()

	// Set up a simple Gin router with OpenTelemetry middleware
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware("test-service"))

	// Add a test endpoint that returns trace headers
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"has_traceparent": c.Request.Header.Get("traceparent") != "",
		})
	})

	// Test 1: Request without trace headers
	req1, _ := http.NewRequest("GET", "/test", nil)
	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, req1)

	assert.Equal(t, http.StatusOK, w1.Code)

	var resp1 map[string]interface{}
	err := json.Unmarshal(w1.Body.Bytes(), &resp1)
	require.NoError(t, err)
	assert.Equal(t, false, resp1["has_traceparent"])

	// Test 2: Request with trace headers
	req2, _ := http.NewRequest("GET", "/test", nil)
	req2.Header.Set("traceparent", "00-12345678901234567890123456789012-1234567890123456-01")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusOK, w2.Code)

	var resp2 map[string]interface{}
	err = json.Unmarshal(w2.Body.Bytes(), &resp2)
	require.NoError(t, err)
	assert.Equal(t, true, resp2["has_traceparent"])
}

func TestGinMiddleware_ErrorHandling(t *testing.T) {
	// Set up test tracer
	cleanup := setupTestTracer()
	defer cleanup()

	// Test that the middleware handles errors gracefully
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware("test-service"))

	// Add an endpoint that returns an error
	router.GET("/error", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "test error",
		})
	})

	req, _ := http.NewRequest("GET", "/error", nil)
	w := httptest.NewRecorder()

	// Should handle the error and return 500 status
	router.ServeHTTP(w, req)

	// Should return 500 status
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "test error", resp["error"])
}

func newRecordingRouter(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	router := setupGin()
	router.Use(GinMiddleware("test-service"), SpanErrorMiddleware())
	return router, recorder
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestSpanErrorMiddleware_AppErrorAttributes(t *testing.T) {
	router, recorder := newRecordingRouter(t)
	router.POST("/generate", func(c *gin.Context) {
		_ = c.Error(contextutils.WrapError(contextutils.ErrAIRequestFailed, "upstream 503"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed"})
	})

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"text":"x"}`))
	req = req.WithContext(contextutils.WithRequestID(req.Context(), "req-42"))
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := spanAttributes(spans[0])
	assert.Equal(t, "AI_REQUEST_FAILED", attrs["error.code"].AsString())
	assert.True(t, attrs["error.retryable"].AsBool())
	assert.Equal(t, "error", attrs["error.severity"].AsString())
	assert.True(t, attrs["error.server_error"].AsBool())
	assert.Equal(t, "req-42", attrs["request.id"].AsString())
	assert.Equal(t, int64(12), attrs["error.request_size"].AsInt64())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.NotEmpty(t, spans[0].Events())
}

func TestSpanErrorMiddleware_ClientErrorWithoutAppError(t *testing.T) {
	router, recorder := newRecordingRouter(t)
	router.GET("/missing", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := spanAttributes(spans[0])
	assert.Equal(t, "warn", attrs["error.severity"].AsString())
	assert.EqualValues(t, 404, attrs["http.status_code"].AsInt64())
	_, hasCode := attrs["error.code"]
	assert.False(t, hasCode)
	_, serverError := attrs["error.server_error"]
	assert.False(t, serverError)
}

func TestSpanErrorMiddleware_SuccessLeavesSpanClean(t *testing.T) {
	router, recorder := newRecordingRouter(t)
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	_, hasSeverity := spanAttributes(spans[0])["error.severity"]
	assert.False(t, hasSeverity)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestDetermineErrorSeverity(t *testing.T) {
	assert.Equal(t, "error", determineErrorSeverity(503, nil))
	assert.Equal(t, "warn", determineErrorSeverity(400, nil))
	assert.Equal(t, "info", determineErrorSeverity(302, nil))

	errs := []*gin.Error{{Err: contextutils.ErrInvalidInput}}
	assert.Equal(t, "warn", determineErrorSeverity(500, errs))
}
