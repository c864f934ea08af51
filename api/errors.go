// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types and the error taxonomy for the flowport core.
//
// Three failure classes exist and must never share a channel:
// contract violations (caller defects, surfaced as panics carrying *Error),
// resource exhaustion (returned as errors), and flow-control stalls
// (never errors; the calling goroutine blocks until capacity returns).

package api

import "fmt"

// Common errors used across the library.
var (
	ErrManagerClosed     = fmt.Errorf("buffer manager is closed")
	ErrPortClosed        = fmt.Errorf("port is closed")
	ErrInvalidArgument   = fmt.Errorf("invalid argument")
	ErrResourceExhausted = fmt.Errorf("resource exhausted")
	ErrNotFound          = fmt.Errorf("resource not found")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeContractViolation
	ErrCodeNotFound
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ContractViolation builds the error used for caller-defect panics:
// produce beyond the available elements, double-forwarding bytes,
// consuming more than was delivered. These are not recoverable and
// indicate a bug in the worker implementation.
func ContractViolation(format string, args ...any) *Error {
	return NewError(ErrCodeContractViolation, fmt.Sprintf(format, args...))
}
