package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a run-level error class.
type ErrorCode string

// Generator boundary
const (
	ErrTransientAPI     ErrorCode = "TRANSIENT_API"     // 限流，本地延迟重试
	ErrFatalAPI         ErrorCode = "FATAL_API"         // 鉴权/请求格式错误，立即终止
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED" // 其他生成失败，消耗一次尝试
)

// Attempt outcomes
const (
	ErrExecutionFailed  ErrorCode = "EXECUTION_FAILED"
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrInternalError    ErrorCode = "INTERNAL_ERROR"
)

// Run outcomes
const (
	ErrBudgetExhausted ErrorCode = "BUDGET_EXHAUSTED"
	ErrCancelled       ErrorCode = "CANCELLED"
	ErrInvalidConfig   ErrorCode = "INVALID_CONFIG"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError extracts a *Error from anywhere in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
