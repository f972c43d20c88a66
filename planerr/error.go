// Package planerr provides structured error types for itinerary parsing and
// validation.
//
// Every error raised by the core packages is a *Error carrying the operation
// that failed, a standard code and an optional cause. Callers classify errors
// with errors.Is against the sentinels or with CodeOf.
package planerr

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error codes.
const (
	// CodeParse indicates malformed time or step text.
	CodeParse = "PARSE_ERROR"

	// CodeUnknownEntity indicates a person or city absent from the constraint model.
	CodeUnknownEntity = "UNKNOWN_ENTITY"

	// CodeUnknownRoute indicates a location pair missing from the travel table.
	CodeUnknownRoute = "UNKNOWN_ROUTE"

	// CodeViolation indicates a broken semantic rule.
	CodeViolation = "CONSTRAINT_VIOLATION"

	// CodeInvalidInput indicates an ill-formed problem instance or record.
	CodeInvalidInput = "INVALID_INPUT"
)

// Error is a structured error for plan operations.
type Error struct {
	// Operation is the operation that failed (e.g. "parse_time", "lookup_route")
	Operation string

	// Code is one of the Code constants
	Code string

	// Message is a human-readable description
	Message string

	// Details carries extra context as key-value pairs
	Details map[string]any

	// Cause is the underlying error, if any
	Cause error
}

// New creates a structured error.
//
// Example:
//
//	err := planerr.New("parse_time", planerr.CodeParse, `invalid time "25:00PM"`)
func New(operation, code, message string) *Error {
	return &Error{
		Operation: operation,
		Code:      code,
		Message:   message,
	}
}

// Newf is New with a formatted message.
func Newf(operation, code, format string, args ...any) *Error {
	return New(operation, code, fmt.Sprintf(format, args...))
}

// WithCause sets the underlying error and returns e for chaining.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails sets additional context and returns e for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Error implements the error interface as "operation/code: message: cause".
func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("%s/%s", e.Operation, e.Code)}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a matching *Error or the sentinel for e's code.
// Two *Error values match when Code is equal and target's Operation is
// either empty or equal.
func (e *Error) Is(target error) bool {
	if s, ok := sentinels[e.Code]; ok && target == s {
		return true
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Operation == "" || e.Operation == t.Operation)
}

// Sentinel errors, one per code.
var (
	// ErrParse matches every PARSE_ERROR
	ErrParse = errors.New("parse error")

	// ErrUnknownEntity matches every UNKNOWN_ENTITY
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrUnknownRoute matches every UNKNOWN_ROUTE
	ErrUnknownRoute = errors.New("unknown route")

	// ErrViolation matches every CONSTRAINT_VIOLATION
	ErrViolation = errors.New("constraint violation")

	// ErrInvalidInput matches every INVALID_INPUT
	ErrInvalidInput = errors.New("invalid input")
)

var sentinels = map[string]error{
	CodeParse:         ErrParse,
	CodeUnknownEntity: ErrUnknownEntity,
	CodeUnknownRoute:  ErrUnknownRoute,
	CodeViolation:     ErrViolation,
	CodeInvalidInput:  ErrInvalidInput,
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Parse is shorthand for a PARSE_ERROR.
func Parse(operation, format string, args ...any) *Error {
	return Newf(operation, CodeParse, format, args...)
}

// UnknownEntity is shorthand for an UNKNOWN_ENTITY error naming kind and name.
func UnknownEntity(kind, name string) *Error {
	return Newf("lookup_"+kind, CodeUnknownEntity, "unknown %s %q", kind, name).
		WithDetails(map[string]any{kind: name})
}

// UnknownRoute is shorthand for an UNKNOWN_ROUTE error.
func UnknownRoute(origin, destination string) *Error {
	return Newf("lookup_travel_time", CodeUnknownRoute, "no route from %q to %q", origin, destination).
		WithDetails(map[string]any{"origin": origin, "destination": destination})
}
