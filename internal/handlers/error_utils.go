package handlers

import (
	"net/http"

	"learnapp/internal/middleware"
	contextutils "learnapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// StandardizeHTTPError creates consistent HTTP error responses with structured error information
func StandardizeHTTPError(c *gin.Context, statusCode int, message, details string) {
	var errorCode contextutils.ErrorCode
	var severity contextutils.SeverityLevel

	switch statusCode {
	case http.StatusBadRequest:
		errorCode = contextutils.ErrorCodeInvalidInput
		severity = contextutils.SeverityWarn
	case http.StatusNotFound:
		errorCode = contextutils.ErrorCodeRecordNotFound
		severity = contextutils.SeverityInfo
	case http.StatusRequestEntityTooLarge:
		errorCode = contextutils.ErrorCodePayloadTooLarge
		severity = contextutils.SeverityWarn
	case http.StatusServiceUnavailable:
		errorCode = contextutils.ErrorCodeServiceUnavailable
		severity = contextutils.SeverityError
	default:
		errorCode = contextutils.ErrorCodeInternalError
		severity = contextutils.SeverityError
	}

	appErr := contextutils.NewAppError(errorCode, severity, message, details)
	c.JSON(statusCode, appErr.ToJSON())
}

// StandardizeAppError sends a structured error response using AppError
func StandardizeAppError(c *gin.Context, err *contextutils.AppError) {
	c.JSON(mapErrorCodeToHTTPStatus(err.Code), err.ToJSON())
}

// HandleAppError handles any error and sends the appropriate HTTP response.
// Errors that are not AppErrors become 500s.
func HandleAppError(c *gin.Context, err error) {
	_ = c.Error(err)
	var appErr *contextutils.AppError
	if contextutils.AsError(err, &appErr) {
		StandardizeAppError(c, appErr)
		return
	}
	StandardizeHTTPError(c, http.StatusInternalServerError, "Internal server error", err.Error())
}

// HandleFailure reports a pipeline failure. Validation errors keep their own
// message; everything else is reported as userMessage with the underlying
// error as details.
func HandleFailure(c *gin.Context, err error, userMessage string) {
	if contextutils.IsValidation(err) {
		HandleAppError(c, err)
		return
	}
	HandleAppError(c, contextutils.WrapError(err, userMessage))
}

// mapErrorCodeToHTTPStatus maps AppError codes to HTTP status codes
func mapErrorCodeToHTTPStatus(code contextutils.ErrorCode) int {
	return middleware.StatusForCode(code)
}
