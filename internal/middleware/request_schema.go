package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

// requestSchemas are the JSON bodies accepted by the JSON endpoints, keyed by
// route. They check shape and types; range checks stay with the services.
var requestSchemas = map[string]string{
	"POST /api/questions/generate": `{
		"type": "object",
		"required": ["text"],
		"properties": {
			"text":          {"type": "string"},
			"subject":       {"type": "string"},
			"difficulty":    {"type": "string"},
			"questionType":  {"type": "string"},
			"questionCount": {"type": "integer"}
		}
	}`,
	"POST /api/upload/test-ocr": `{
		"type": "object",
		"required": ["text"],
		"properties": {
			"text": {"type": "string", "minLength": 1}
		}
	}`,
}

// SchemaLoader holds the compiled request schemas.
type SchemaLoader struct {
	schemas map[string]*gojsonschema.Schema
}

var (
	defaultLoader     *SchemaLoader
	defaultLoaderOnce sync.Once
)

// NewSchemaLoader compiles sources, keyed by "METHOD /route".
func NewSchemaLoader(sources map[string]string) (*SchemaLoader, error) {
	sl := &SchemaLoader{schemas: make(map[string]*gojsonschema.Schema, len(sources))}
	for route, src := range sources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "invalid schema for %s: %v", route, err)
		}
		sl.schemas[route] = schema
	}
	return sl, nil
}

func loadDefaultSchemas() *SchemaLoader {
	defaultLoaderOnce.Do(func() {
		sl, err := NewSchemaLoader(requestSchemas)
		if err != nil {
			panic(err)
		}
		defaultLoader = sl
	})
	return defaultLoader
}

// ValidateBody validates a raw JSON body against the schema registered for
// route. Routes without a schema always pass.
func (sl *SchemaLoader) ValidateBody(route string, body []byte) error {
	schema, ok := sl.schemas[route]
	if !ok {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "request body is not valid JSON: %v", err)
	}
	if !result.Valid() {
		var validationErrors []string
		for _, validationErr := range result.Errors() {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", validationErr.Field(), validationErr.Description()))
		}
		return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "schema validation failed: %s", strings.Join(validationErrors, "; "))
	}
	return nil
}

// RequestValidationMiddleware rejects JSON bodies that do not match the
// route's schema with a 400 before the handler runs.
func RequestValidationMiddleware(logger *observability.Logger) gin.HandlerFunc {
	schemaLoader := loadDefaultSchemas()

	return func(c *gin.Context) {
		route := c.Request.Method + " " + c.FullPath()
		if _, ok := schemaLoader.schemas[route]; !ok {
			c.Next()
			return
		}

		ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "request_validation",
			attribute.String("http.route", route),
		)
		defer span.End()

		body, err := c.GetRawData()
		if err != nil {
			StandardizeAppError(c, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn,
				"Failed to read request body", err.Error()))
			c.Abort()
			return
		}
		// Restore the request body so handlers can read it
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		if err := schemaLoader.ValidateBody(route, body); err != nil {
			logger.Warn(ctx, "Request validation failed", map[string]interface{}{
				"route": route,
				"error": err.Error(),
			})
			span.SetAttributes(attribute.Bool("validation.failed", true))
			var appErr *contextutils.AppError
			if contextutils.AsError(err, &appErr) {
				c.AbortWithStatusJSON(http.StatusBadRequest, appErr.ToJSON())
				return
			}
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		c.Next()
	}
}
