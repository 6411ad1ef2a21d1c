// Package domainerrors provides coded errors for domain and service layers.
//
// Services return these so transport layers can translate a code to an HTTP
// status without inspecting error strings. Infrastructure facts (row missing,
// unique violation) are expressed with pkg/platform/sentinel and wrapped into
// a coded error at the service boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation: field-scoped input validation failed. Recoverable by
	// the caller correcting input.
	CodeValidation Code = "validation_error"
	// CodeInvalidInput: a single value failed parsing (malformed id, enum).
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest: the request itself is malformed (bad JSON, missing body).
	CodeBadRequest Code = "bad_request"
	// CodeNotFound: the referenced entity does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict: the request conflicts with current state (duplicate,
	// already-used idempotency key).
	CodeConflict Code = "conflict"
	// CodeInvalidTransition: a lifecycle state change is not permitted from
	// the aggregate's current state. The aggregate is left untouched.
	CodeInvalidTransition Code = "invalid_transition"
	// CodePolicyDenied: a reprogramming request was blocked by an active rule.
	CodePolicyDenied Code = "policy_denied"
	// CodeInvariantViolation: an aggregate invariant would be broken. Raised
	// by model constructors and transition guards.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnauthorized: missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden: authenticated but not allowed.
	CodeForbidden Code = "forbidden"
	// CodeUnavailable: a downstream collaborator is temporarily unavailable.
	// Callers may retry idempotent operations.
	CodeUnavailable Code = "unavailable"
	// CodeInternal: unexpected failure. Details are logged, never surfaced.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause remains
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for e := err; e != nil; {
		if errors.As(e, &de) {
			if de.Code == code {
				return true
			}
			e = de.Unwrap()
			continue
		}
		return false
	}
	return false
}

// Is is a readability alias for HasCode, used at call sites that branch on a
// single code.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// carries none. Transport layers use it to pick an HTTP status.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost coded message, or empty when err carries none.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a domain error code to an HTTP status code.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidTransition, CodeInvariantViolation:
		return http.StatusConflict
	case CodePolicyDenied:
		return http.StatusUnprocessableEntity
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
