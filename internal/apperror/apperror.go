// Package apperror defines the error taxonomy shared by services and handlers.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindForbidden   Kind = "forbidden"
	KindBadRequest  Kind = "bad_request"
	KindConflict    Kind = "conflict"
	KindUnavailable Kind = "unavailable"
	KindUpstream    Kind = "upstream"
	KindInternal    Kind = "internal"
)

// Error is a classified application error with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]interface{}
	Err     error
}

// New creates a classified error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NotFound creates a not-found error.
func NotFound(code, message string) *Error { return New(KindNotFound, code, message) }

// Forbidden creates an authorisation error.
func Forbidden(code, message string) *Error { return New(KindForbidden, code, message) }

// BadRequest creates a validation error.
func BadRequest(code, message string) *Error { return New(KindBadRequest, code, message) }

// Conflict creates a state conflict error.
func Conflict(code, message string) *Error { return New(KindConflict, code, message) }

// Unavailable creates an error for a dependency that is not configured.
func Unavailable(code, message string) *Error { return New(KindUnavailable, code, message) }

// Internal creates an integrity error that should never reach a well-formed request.
func Internal(code, message string) *Error { return New(KindInternal, code, message) }

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors sharing kind and code, so derived errors still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(message string) *Error {
	clone := *e
	clone.Message = message
	return &clone
}

// Withf returns a copy carrying a formatted message.
func (e *Error) Withf(format string, args ...interface{}) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy carrying client-safe details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// Wrap returns a copy wrapping the underlying cause.
func (e *Error) Wrap(err error) *Error {
	clone := *e
	clone.Err = err
	return &clone
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}
