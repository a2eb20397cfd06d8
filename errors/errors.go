package errors

import (
	"errors"
	"fmt"
)

const (
	// UnknownCode is assigned to errors converted from a plain error value.
	UnknownCode = 500
)

// Error is a structured error carrying the HTTP status code reported by the
// service, a human-readable message and an optional underlying cause.
type Error struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	cause   error
}

// Error returns a human-readable error message with optional error chain.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("code=%d, message=%s, cause=%v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("code=%d, message=%s", e.Code, e.Message)
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause returns a copy of the error with cause attached. The receiver is
// not modified.
func (e *Error) WithCause(cause error) *Error {
	if cause == nil {
		return e
	}
	return &Error{Code: e.Code, Message: e.Message, cause: cause}
}

// Is reports whether err is an *Error with the same code and message.
func (e *Error) Is(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return e.Code == te.Code && e.Message == te.Message
	}
	return false
}

// New creates a new error with the given status code and formatted message.
func New(code int, format string, args ...any) *Error {
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	return &Error{Code: code, Message: message}
}

// Wrap wraps err with a status code and formatted message while preserving
// the original error chain. Returns nil if err is nil.
func Wrap(err error, code int, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return New(code, format, args...).WithCause(err)
}

// FromError converts a generic error to *Error. An existing *Error is
// returned as-is.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return New(UnknownCode, "%v", err)
}

// Code returns the status code carried by err, or UnknownCode when err is
// not an *Error. A nil error reports 0.
func Code(err error) int {
	if err == nil {
		return 0
	}
	return FromError(err).Code
}

// Message returns the message carried by err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return FromError(err).Message
}
