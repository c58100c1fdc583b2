package observability

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	contextutils "learnapp/internal/utils"
)

// GinMiddleware creates OpenTelemetry middleware for Gin HTTP requests
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// SpanErrorMiddleware adds error attributes to the request span of 4xx and 5xx
// responses. It must be registered after GinMiddleware so the span is still
// open when the handlers return.
func SpanErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		statusCode := c.Writer.Status()
		if statusCode < 400 {
			return
		}
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		errorMsg := "client error"
		if statusCode >= 500 {
			errorMsg = "server error"
		}
		attrs := []attribute.KeyValue{
			attribute.Int("http.status_code", statusCode),
			attribute.String("error.handler", c.HandlerName()),
			attribute.String("error.severity", determineErrorSeverity(statusCode, c.Errors)),
		}

		if appErr := firstAppError(c.Errors); appErr != nil {
			errorMsg = appErr.Message
			attrs = append(attrs,
				attribute.String("error.code", string(appErr.Code)),
				attribute.Bool("error.retryable", contextutils.IsRetryable(appErr)),
			)
		} else if last := c.Errors.Last(); last != nil {
			errorMsg = last.Error()
		}

		if requestID := contextutils.GetRequestIDFromContext(c.Request.Context()); requestID != "" {
			attrs = append(attrs, attribute.String("request.id", requestID))
		}
		if c.Request.ContentLength > 0 {
			attrs = append(attrs, attribute.Int64("error.request_size", c.Request.ContentLength))
		}
		if statusCode >= 500 {
			attrs = append(attrs, attribute.Bool("error.server_error", true))
		}

		span.SetAttributes(attrs...)
		span.RecordError(errors.New(errorMsg))
		span.SetStatus(codes.Error, errorMsg)
	}
}

func firstAppError(errs []*gin.Error) *contextutils.AppError {
	for _, err := range errs {
		var appErr *contextutils.AppError
		if contextutils.AsError(err.Err, &appErr) {
			return appErr
		}
	}
	return nil
}

// determineErrorSeverity prefers the AppError severity and falls back to the status class
func determineErrorSeverity(statusCode int, errs []*gin.Error) string {
	if appErr := firstAppError(errs); appErr != nil {
		return string(appErr.Severity)
	}

	switch {
	case statusCode >= 500:
		return string(contextutils.SeverityError)
	case statusCode >= 400:
		return string(contextutils.SeverityWarn)
	default:
		return string(contextutils.SeverityInfo)
	}
}
