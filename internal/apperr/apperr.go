// Package apperr defines the error kinds surfaced by the service layer and
// their mapping onto HTTP status codes.
//
// Services return typed errors:
//
//	if video.OwnerID != actor {
//	    return apperr.Forbidden("only the owner can edit this video")
//	}
//
// Callers match on kind with errors.Is:
//
//	if errors.Is(err, apperr.ErrNotFound) { ... }
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error category.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindUnauthenticated   Kind = "unauthenticated"
	KindDependencyFailure Kind = "dependency_failure"
	KindPartialFailure    Kind = "partial_failure"
	KindUnavailable       Kind = "unavailable"
	KindInternal          Kind = "internal"
)

// HTTPStatus returns the status code a transport should use for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindDependencyFailure:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a client may retry the same request unchanged.
func (k Kind) Retryable() bool {
	return k == KindUnavailable
}

// Error is a categorized error with an optional per-field breakdown.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrDependencyFailure = &Error{Kind: KindDependencyFailure}
	ErrPartialFailure    = &Error{Kind: KindPartialFailure}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Validation reports malformed input.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// ValidationFields reports malformed input with per-field messages.
func ValidationFields(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// Dependency reports that an external collaborator (object storage, hashing) failed.
func Dependency(msg string, err error) *Error {
	return &Error{Kind: KindDependencyFailure, Message: msg, Err: err}
}

// Partial reports that the primary write committed but follow-up work did not finish.
func Partial(msg string, err error) *Error {
	return &Error{Kind: KindPartialFailure, Message: msg, Err: err}
}

// Unavailable reports a transient store failure the client may retry.
func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, Message: msg, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
