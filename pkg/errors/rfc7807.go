// Package errors provides the exchange error type and its RFC 7807 rendering.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// FieldError represents a validation error for a specific field
type FieldError struct {
	Kind    string `json:"kind"`
	Field   string `json:"field"`
	Message string `json:"message,omitempty"`
}

func (f *FieldError) Error() string {
	return fmt.Sprintf("%s (%s): %s", f.Field, f.Kind, f.Message)
}

func NewFieldError(kind, field, reason string) FieldError {
	return FieldError{Kind: kind, Field: field, Message: reason}
}

// Error kinds
const (
	KindInvalidOrder = "invalid_order"
	KindUnavailable  = "unavailable"
	KindInternal     = "internal"
)

var (
	InvalidOrder = &Error{Kind: KindInvalidOrder, Message: "order rejected", status: http.StatusBadRequest}
	Unavailable  = &Error{Kind: KindUnavailable, Message: "engine is shutting down", status: http.StatusServiceUnavailable}
	Internal     = &Error{Kind: KindInternal, Message: "internal error", status: http.StatusInternalServerError}
)

// Error is a custom error type for passing more information
type Error struct {
	// Kind is the returned error type
	Kind string `json:"kind"`
	// Message is the human readable string that indicate the error
	Message string `json:"message"`
	// Fields used when there's validation error for a field.
	Fields []FieldError `json:"fields,omitempty"`

	status int
	cause  error
}

var _ error = (*Error)(nil)

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] ", e.Kind)
	if e.Message != "" {
		str += e.Message
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Wrap returns a copy of the error with the given cause
func (e *Error) Wrap(cause error) *Error {
	err := *e
	err.cause = cause
	return &err
}

// Explain makes a copy of the error with given message
func (e *Error) Explain(message string, args ...any) *Error {
	err := *e
	err.Message = fmt.Sprintf(message, args...)
	return &err
}

// WithField returns a copy of error with one more field error.
func (e *Error) WithField(kind, field, message string) *Error {
	err := *e
	err.Fields = append(append([]FieldError(nil), e.Fields...), NewFieldError(kind, field, message))
	return &err
}

// Status is the HTTP status the error maps to.
func (e *Error) Status() int {
	if e.status == 0 {
		return http.StatusInternalServerError
	}
	return e.status
}

// Is matches on kind so errors.Is(err, InvalidOrder) holds for every explained copy.
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind
	}
	return false
}

// Problem type URIs
const (
	TypeInvalidOrder  = "https://dexter.local/problems/invalid-order"
	TypeUnavailable   = "https://dexter.local/problems/unavailable"
	TypeInternalError = "https://dexter.local/problems/internal-error"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// Problem renders any error as problem details for the given request path.
func Problem(err error, instance string) *ProblemDetails {
	var e *Error
	if !As(err, &e) {
		e = Internal.Wrap(err)
	}
	p := &ProblemDetails{
		Status:   e.Status(),
		Title:    http.StatusText(e.Status()),
		Detail:   e.Message,
		Instance: instance,
		Errors:   e.Fields,
	}
	switch e.Kind {
	case KindInvalidOrder:
		p.Type = TypeInvalidOrder
	case KindUnavailable:
		p.Type = TypeUnavailable
	default:
		p.Type = TypeInternalError
	}
	return p
}
