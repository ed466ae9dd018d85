// Package domainerrors provides coded errors for the identity/claims core.
// Services return these so transports can map codes to HTTP statuses and
// tests can assert on the kind of failure rather than message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks malformed input, e.g. an expiry before issuance.
	CodeValidation Code = "validation"
	// CodeNotFound marks a referenced entity that does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks duplicate registration of an existing entity.
	CodeConflict Code = "conflict"
	// CodeUnauthorizedIssuer marks an issuer not permitted for a claim topic.
	// Kept distinct from CodeValidation to help issuer-integration debugging.
	CodeUnauthorizedIssuer Code = "unauthorized_issuer"
	// CodeInvalidState marks an operation illegal for the entity's current
	// status, e.g. revoking an already-revoked claim.
	CodeInvalidState Code = "invalid_state"
	// CodeBadRequest marks a request the transport could not honor.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks a missing or invalid operator credential.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal marks infrastructure failures (store unavailable etc.).
	CodeInternal Code = "internal"
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

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// CodeOf returns the outermost code on err, or CodeInternal if none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
