package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType int

const (
	// ErrorTypeValidation indicates a caller error: a required field is
	// missing or malformed. Not retryable.
	ErrorTypeValidation ErrorType = iota
	// ErrorTypeNegotiation indicates the connection engine rejected an SDP
	// or ICE candidate.
	ErrorTypeNegotiation
	// ErrorTypeNotFound indicates a not found error
	ErrorTypeNotFound
	// ErrorTypeTimeout indicates a bounded wait on the engine expired. The
	// underlying work is not cancelled; the outcome is unknown.
	ErrorTypeTimeout
	// ErrorTypeInternal indicates an unexpected engine or dispatch failure
	ErrorTypeInternal
)

// Well-known error codes
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeNegotiationFailed = "NEGOTIATION_FAILED"
	CodeEngineTimeout     = "ENGINE_TIMEOUT"
	CodeInternal          = "INTERNAL"
)

// Error represents a structured error with metadata
type Error struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// New creates a new error
func New(errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Cause:     err,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to an error
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal for errors that
// did not originate from this package.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}
