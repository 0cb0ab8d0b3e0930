// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rpm-monitor/backend/internal/auth"
	"github.com/rpm-monitor/backend/internal/session"
	"github.com/rpm-monitor/backend/internal/storage"
	"github.com/rpm-monitor/backend/internal/upload"
	"github.com/rpm-monitor/backend/internal/vision"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewUnauthorizedError creates a 401 error for signed-out callers
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewTooLargeError creates a 413 error
func NewTooLargeError(message string) *APIError {
	return &APIError{
		Status:  http.StatusRequestEntityTooLarge,
		Code:    "TOO_LARGE",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// FromDomainError maps session and store errors to API errors. Unknown errors
// become 500s.
func FromDomainError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, session.ErrReadOnly):
		return NewUnauthorizedError("sign in to change the dashboard")
	case errors.Is(err, auth.ErrInvalidUser):
		return NewValidationError("userId")

	case errors.Is(err, session.ErrUnknownGroup),
		errors.Is(err, vision.ErrUnknownComponent),
		errors.Is(err, vision.ErrNoMarker),
		errors.Is(err, upload.ErrJobNotFound),
		errors.Is(err, storage.ErrAssetNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}

	case errors.Is(err, session.ErrUnknownParam),
		errors.Is(err, session.ErrInvalidTab),
		errors.Is(err, vision.ErrInvalidRPM),
		errors.Is(err, vision.ErrEmptyRect),
		errors.Is(err, vision.ErrOutsideImage),
		errors.Is(err, storage.ErrInvalidPath):
		return NewBadRequestError(err.Error(), nil)

	case errors.Is(err, vision.ErrAlreadyAssigned),
		errors.Is(err, vision.ErrSurfaceBusy),
		errors.Is(err, vision.ErrNotEditing),
		errors.Is(err, vision.ErrNoCandidate),
		errors.Is(err, vision.ErrNoDrawing):
		return NewConflictError(err.Error())

	case errors.Is(err, upload.ErrTooLarge):
		return NewTooLargeError(err.Error())
	}

	return NewInternalError("an unexpected error occurred", err)
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = FromDomainError(err)
	}

	if apiErr.Status >= http.StatusInternalServerError {
		slog.Error("request failed", "component", "api",
			"method", c.Request().Method, "path", c.Path(), "error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}
