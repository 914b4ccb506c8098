package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound                = errors.New("resource not found")
	ErrInvalidInput            = errors.New("invalid input")
	ErrParseFailure            = errors.New("parse failure")
	ErrComparisonIndeterminate = errors.New("comparison indeterminate")
	ErrTotalsMismatch          = errors.New("invoice total does not match report total")
	ErrExternalService         = errors.New("external service failure")
	ErrLookupMiss              = errors.New("no tariff rule matches")
	ErrDatabase                = errors.New("database error")
	ErrValidation              = errors.New("validation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ParseFailuref wraps ErrParseFailure with a formatted detail.
func ParseFailuref(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParseFailure, fmt.Sprintf(format, args...))
}

// ExternalFailure wraps ErrExternalService for the named collaborator.
func ExternalFailure(service string, err error) error {
	return &AppError{Code: "EXTERNAL_" + service, Message: "call failed", Cause: errors.Join(ErrExternalService, err)}
}

// HTTPStatus maps the error taxonomy to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrParseFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrComparisonIndeterminate), errors.Is(err, ErrTotalsMismatch):
		return http.StatusConflict
	case errors.Is(err, ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
