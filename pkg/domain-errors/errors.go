// Package domainerrors provides code-tagged errors for the registry domain.
//
// Services return these so transport layers can map failures to responses
// without string matching. Stores return pkg/platform/sentinel errors and
// services translate them into coded errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the failure class of a domain error.
type Code string

const (
	// CodeUnauthorized means the caller lacks the capability for the operation.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden means the caller is known but not permitted for this
	// specific record (for example, not the issuer of record).
	CodeForbidden Code = "forbidden"

	// CodeInvalidInput means a field failed parsing at a trust boundary.
	CodeInvalidInput Code = "invalid_input"

	// CodeValidation means a request was well-formed but violated a domain
	// rule (empty recipient, expiry in the past, mismatched batch lengths).
	CodeValidation Code = "validation"

	// CodeNotFound means the addressed record does not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict means the request collided with existing state (duplicate
	// content hash, already-revoked credential).
	CodeConflict Code = "conflict"

	// CodeUnavailable means the system refused the mutation (paused) or a
	// downstream dependency was unreachable.
	CodeUnavailable Code = "unavailable"

	// CodeInvariantViolation means a model transition was attempted that the
	// state machine forbids.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "internal"
)

// Error is a code-tagged domain error. Message is safe to surface to callers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without an underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-safe message from err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to the HTTP status the transport layer should use.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidInput, CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
