package middleware

import (
	contextutils "learnapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds ids accepted from clients.
const maxRequestIDLength = 128

// RequestIDMiddleware reuses the caller's X-Request-ID or assigns a new
// UUID, echoes it on the response and stores it in the request context for
// the logger.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Set(string(contextutils.RequestIDKey), id)
		c.Request = c.Request.WithContext(contextutils.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
