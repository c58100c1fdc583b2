// Package middleware holds the gin middleware shared by every learnapp route.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"learnapp/internal/config"
	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorRecoveryConfig configures error recovery behavior
type ErrorRecoveryConfig struct {
	// EnableCircuitBreaker short-circuits requests after repeated 5xx responses
	EnableCircuitBreaker bool
	// CircuitBreakerThreshold is the number of consecutive 5xx responses that opens the circuit
	CircuitBreakerThreshold int
	// CircuitBreakerTimeout is how long the circuit stays open before a trial request
	CircuitBreakerTimeout time.Duration
}

// DefaultErrorRecoveryConfig returns a default error recovery configuration
func DefaultErrorRecoveryConfig() *ErrorRecoveryConfig {
	return &ErrorRecoveryConfig{
		EnableCircuitBreaker:    false,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

// NewErrorRecoveryConfig builds the middleware settings from server.circuit_breaker,
// keeping the defaults for unset limits.
func NewErrorRecoveryConfig(cb config.CircuitBreakerConfig) *ErrorRecoveryConfig {
	rc := DefaultErrorRecoveryConfig()
	rc.EnableCircuitBreaker = cb.Enabled
	if cb.Threshold > 0 {
		rc.CircuitBreakerThreshold = cb.Threshold
	}
	if cb.Timeout > 0 {
		rc.CircuitBreakerTimeout = cb.Timeout
	}
	return rc
}

type circuitBreakerState int

const (
	circuitClosed circuitBreakerState = iota
	circuitOpen
	circuitHalfOpen
)

// circuitBreaker tracks consecutive failures and manages circuit state
type circuitBreaker struct {
	mu          sync.Mutex
	state       circuitBreakerState
	failures    int
	lastFailure time.Time
	config      *ErrorRecoveryConfig
	now         func() time.Time
}

func newCircuitBreaker(rc *ErrorRecoveryConfig) *circuitBreaker {
	return &circuitBreaker{
		state:  circuitClosed,
		config: rc,
		now:    time.Now,
	}
}

func (cb *circuitBreaker) canExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case circuitClosed, circuitHalfOpen:
		return true
	case circuitOpen:
		if cb.now().Sub(cb.lastFailure) > cb.config.CircuitBreakerTimeout {
			cb.state = circuitHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = circuitClosed
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == circuitHalfOpen || cb.failures >= cb.config.CircuitBreakerThreshold {
		cb.state = circuitOpen
	}
}

// ErrorHandlingMiddleware recovers panics into structured 500 responses,
// writes an error response for handlers that recorded an error without
// responding, and optionally trips a circuit breaker on repeated 5xx.
func ErrorHandlingMiddleware(logger *observability.Logger, rc *ErrorRecoveryConfig) gin.HandlerFunc {
	if rc == nil {
		rc = DefaultErrorRecoveryConfig()
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	var cb *circuitBreaker
	if rc.EnableCircuitBreaker {
		cb = newCircuitBreaker(rc)
	}

	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				stackTrace := string(debug.Stack())

				panicErr, ok := recovered.(error)
				if !ok {
					panicErr = fmt.Errorf("panic: %v", recovered)
				}
				logger.Error(c.Request.Context(), "Panic recovered", panicErr, map[string]interface{}{
					"http.method": c.Request.Method,
					"http.path":   c.Request.URL.Path,
					"stack":       stackTrace,
				})

				appErr := contextutils.NewAppErrorWithCause(
					contextutils.ErrorCodeInternalError,
					contextutils.SeverityFatal,
					localizedMessage(c, contextutils.ErrorCodeInternalError),
					"A panic occurred while processing the request",
					panicErr,
				)
				if gin.Mode() == gin.DebugMode {
					appErr.Details = fmt.Sprintf("%s\nStack trace: %s", appErr.Details, stackTrace)
				}

				if cb != nil {
					cb.recordFailure()
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, appErr.ToJSON())
			}
		}()

		if cb != nil && !cb.canExecute() {
			ServiceUnavailable(c, localizedMessage(c, contextutils.ErrorCodeServiceUnavailable))
			c.Abort()
			return
		}

		c.Next()

		// A handler that only called c.Error still gets a structured response.
		if !c.Writer.Written() && len(c.Errors) > 0 {
			HandleAppError(c, c.Errors.Last().Err)
		}

		if cb != nil {
			if c.Writer.Status() >= http.StatusInternalServerError {
				cb.recordFailure()
			} else {
				cb.recordSuccess()
			}
		}
	}
}

// HandleAppError handles any AppError and sends appropriate HTTP response
func HandleAppError(c *gin.Context, err error) {
	var appErr *contextutils.AppError
	if contextutils.AsError(err, &appErr) {
		StandardizeAppError(c, appErr)
		return
	}
	StandardizeAppError(c, contextutils.NewAppError(
		contextutils.ErrorCodeInternalError,
		contextutils.SeverityError,
		localizedMessage(c, contextutils.ErrorCodeInternalError),
		err.Error(),
	))
}

// localizedMessage picks the generic message for code in the request's
// Accept-Language, defaulting to Japanese.
func localizedMessage(c *gin.Context, code contextutils.ErrorCode) string {
	return contextutils.GetLocalizedMessage(code, contextutils.ParseLocale(c.GetHeader("Accept-Language")))
}

// StandardizeAppError sends a structured error response using AppError
func StandardizeAppError(c *gin.Context, err *contextutils.AppError) {
	c.JSON(StatusForCode(err.Code), err.ToJSON())
}

// ServiceUnavailable sends a 503 Service Unavailable error with a standardized payload
func ServiceUnavailable(c *gin.Context, msg string) {
	StandardizeAppError(c, contextutils.NewAppError(
		contextutils.ErrorCodeServiceUnavailable,
		contextutils.SeverityError,
		msg,
		"",
	))
}

// StatusForCode maps AppError codes to HTTP status codes. AI failures that
// survive the retry bound are 500s.
func StatusForCode(code contextutils.ErrorCode) int {
	switch code {
	case contextutils.ErrorCodeInvalidInput, contextutils.ErrorCodeMissingRequired,
		contextutils.ErrorCodeInvalidFormat, contextutils.ErrorCodeValidationFailed:
		return http.StatusBadRequest

	case contextutils.ErrorCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge

	case contextutils.ErrorCodeRecordNotFound:
		return http.StatusNotFound

	case contextutils.ErrorCodeServiceUnavailable:
		return http.StatusServiceUnavailable

	case contextutils.ErrorCodeTimeout, contextutils.ErrorCodeAIRequestFailed,
		contextutils.ErrorCodeAIResponseInvalid, contextutils.ErrorCodeAIConfigInvalid,
		contextutils.ErrorCodeInternalError:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
