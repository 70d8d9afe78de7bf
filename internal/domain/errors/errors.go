// Package errors provides domain-specific errors for the streamchat library.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common domain error conditions.
var (
	ErrPromptOverflow       = errors.New("prompt exceeds token budget")
	ErrInvalidResponse      = errors.New("invalid response")
	ErrBadStatus            = errors.New("bad response status")
	ErrTrustRejected        = errors.New("server certificate chain not pinned")
	ErrNoPinnedCertificates = errors.New("no pinned certificates loaded")
	ErrExchangeInFlight     = errors.New("exchange already in flight")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrTranscriptNotFound   = errors.New("transcript not found")
)

// ErrorCode categorizes errors for handling and reporting.
type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION"
	CodeOverflow      ErrorCode = "OVERFLOW"
	CodeTransport     ErrorCode = "TRANSPORT"
	CodeStatus        ErrorCode = "STATUS"
	CodeBusy          ErrorCode = "BUSY"
	CodeConfiguration ErrorCode = "CONFIG"
	CodeStorage       ErrorCode = "STORAGE"
	CodeNotFound      ErrorCode = "NOT_FOUND"
)

// StreamchatError wraps errors with additional context for debugging and handling.
type StreamchatError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns a formatted error string including the code, message, and cause if present.
func (e *StreamchatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for use with errors.Is and errors.As.
func (e *StreamchatError) Unwrap() error {
	return e.Cause
}

// NewError creates a new StreamchatError with the given code, message, and optional cause.
func NewError(code ErrorCode, message string, cause error) *StreamchatError {
	return &StreamchatError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error's context and returns the error.
func WithContext(err *StreamchatError, key string, value interface{}) *StreamchatError {
	if err.Context == nil {
		err.Context = make(map[string]interface{})
	}
	err.Context[key] = value
	return err
}

// CodeOf returns the ErrorCode of the first StreamchatError in err's chain,
// or the empty code if there is none.
func CodeOf(err error) ErrorCode {
	var se *StreamchatError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// OverflowError reports a prompt that cannot fit the token budget even after
// all history has been dropped.
type OverflowError struct {
	Tokens int
	Budget int
}

// Error implements the error interface.
func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s: %d tokens > budget %d with empty history", ErrPromptOverflow, e.Tokens, e.Budget)
}

// Unwrap lets errors.Is match ErrPromptOverflow.
func (e *OverflowError) Unwrap() error {
	return ErrPromptOverflow
}

// BadStatusError reports a non-2xx response. Reason is the server's error
// message when the body carried one, otherwise the raw body text.
type BadStatusError struct {
	StatusCode int
	Reason     string
}

// Error implements the error interface.
func (e *BadStatusError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("bad response: %d", e.StatusCode)
	}
	return fmt.Sprintf("bad response: %d. %s", e.StatusCode, e.Reason)
}

// Unwrap lets errors.Is match ErrBadStatus.
func (e *BadStatusError) Unwrap() error {
	return ErrBadStatus
}

// Is reports whether err matches target using errors.Is semantics.
// This is a convenience wrapper around the standard library's errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target and sets target to that error value.
// This is a convenience wrapper around the standard library's errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
