// Package apperrors defines the error kinds shared by every domain service.
//
// Services return *Error values for expected failures (missing entities,
// forbidden callers, invalid input, uniqueness races). Anything else is an
// infrastructure failure and is reported to clients as an internal error.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindUnauthorized    Kind = "unauthorized"
	KindUnauthenticated Kind = "unauthenticated"
	KindBadRequest      Kind = "bad_request"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
)

// Error codes returned to API clients
const (
	CodeNotFound     = "RESOURCE_NOT_FOUND"
	CodeUnauthorized = "ACCESS_UNAUTHORIZED"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_SERVER_ERROR"
)

// Error is an application error with a kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a missing entity or a failed containment check.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Unauthorized reports an authenticated caller lacking access.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Unauthenticated reports missing or invalid credentials.
func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// BadRequest reports semantically invalid input.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// Conflict reports a lost race on a unique key. Callers may retry.
func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }
func IsBadRequest(err error) bool   { return KindOf(err) == KindBadRequest }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Code maps an error to the machine-readable error code.
func Code(err error) string {
	switch KindOf(err) {
	case KindNotFound:
		return CodeNotFound
	case KindUnauthorized, KindUnauthenticated:
		return CodeUnauthorized
	case KindBadRequest:
		return CodeValidation
	case KindConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}

// PublicMessage returns the message that is safe to show a client.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
