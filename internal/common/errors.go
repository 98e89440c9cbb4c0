package common

import (
	"errors"
	"net/http"
)

// Canonical error codes returned by the API. Handlers translate an AppError
// carrying one of these codes into the matching HTTP status.
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInvalidAmount   = "INVALID_AMOUNT"
	CodeUpstreamFailure = "UPSTREAM_FAILURE"
	CodeInternal        = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// InvalidInput reports a malformed or semantically invalid request payload.
func InvalidInput(message string, details any) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message, HTTPStatus: http.StatusBadRequest, Details: details}
}

// NotFound reports a missing store, product or review.
func NotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// Unauthorized reports that the acting user is not allowed to mutate the resource.
func Unauthorized(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusForbidden}
}

// InvalidAmount reports a negative computed monetary total.
func InvalidAmount(message string) *AppError {
	return &AppError{Code: CodeInvalidAmount, Message: message, HTTPStatus: http.StatusUnprocessableEntity}
}

// UpstreamFailure wraps a failed call to an external collaborator.
func UpstreamFailure(message string, err error) *AppError {
	return &AppError{Code: CodeUpstreamFailure, Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// WriteError renders err through the canonical error body, mapping AppError
// codes to their HTTP status and everything else to a 500.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = CodeInternal
		}
		JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	JSONError(w, http.StatusInternalServerError, CodeInternal, "internal error", nil)
}
