package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeNoDisplay          ErrorCode = "NO_DISPLAY"
	ErrCodeCaptureUnavailable ErrorCode = "CAPTURE_UNAVAILABLE"
	ErrCodeEncodeFailed       ErrorCode = "ENCODE_FAILED"
	ErrCodeAuthRejected       ErrorCode = "AUTH_REJECTED"
	ErrCodeTransportFailure   ErrorCode = "TRANSPORT_FAILURE"
	ErrCodeMalformedControl   ErrorCode = "MALFORMED_CONTROL"
	ErrCodeInjectionFailed    ErrorCode = "INJECTION_FAILED"
	ErrCodeInvalidConfig      ErrorCode = "INVALID_CONFIG"
)

// AppError represents an application error with code and context
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError carrying the same code, so that
// errors.Is(err, errors.New...(code)) style comparisons work on codes.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Cause == nil
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// Common error constructors
func NewAuthRejectedError(reason string, cause error) *AppError {
	return WrapError(cause, ErrCodeAuthRejected, reason)
}

func NewEncodeFailedError(cause error) *AppError {
	return WrapError(cause, ErrCodeEncodeFailed, "frame encoding failed")
}

func NewTransportError(op string, cause error) *AppError {
	return WrapError(cause, ErrCodeTransportFailure, op)
}

func NewMalformedControlError(message string, cause error) *AppError {
	return WrapError(cause, ErrCodeMalformedControl, message)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HasCode reports whether any AppError in the chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &AppError{Code: code})
}
