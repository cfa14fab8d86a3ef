package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError carries a machine-readable code alongside the message shown to callers
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeDataFormat      = "DATA_FORMAT_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap adds context to err, keeping the code of the innermost AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    GetCode(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the code of the first AppError in the chain, or INTERNAL_ERROR.
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// Is reports whether any AppError in the chain has the given code
func Is(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// HTTPStatus maps an error to the status code returned by the dashboard callbacks.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeExternalService:
		return http.StatusBadGateway
	case CodeDataFormat:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InvalidInput(format string, args ...interface{}) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf(format, args...))
}

func DataFormat(message string, cause error) *AppError {
	return &AppError{Code: CodeDataFormat, Message: message, Cause: cause}
}

func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code:    CodeExternalService,
		Message: fmt.Sprintf("%s service error", service),
		Cause:   cause,
	}
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
