package middleware

import (
	"time"

	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggingMiddleware logs one structured line per request, at error
// level for 5xx, warn for 4xx and info otherwise.
func RequestLoggingMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if last := c.Errors.Last(); last != nil {
			fields["http.error"] = c.Errors.String()
			fields["error.code"] = string(contextutils.GetErrorCode(last.Err))
			fields["error.severity"] = string(contextutils.GetErrorSeverity(last.Err))
		}
		if statusCode >= 400 {
			fields["http.response_size"] = c.Writer.Size()
			if statusCode >= 500 {
				fields["http.error_type"] = "server_error"
			} else {
				fields["http.error_type"] = "client_error"
			}
		}

		ctx := c.Request.Context()
		switch {
		case statusCode >= 500:
			logger.Error(ctx, "HTTP request failed", nil, fields)
		case statusCode >= 400:
			logger.Warn(ctx, "HTTP request warning", fields)
		default:
			logger.Info(ctx, "HTTP request", fields)
		}
	}
}
