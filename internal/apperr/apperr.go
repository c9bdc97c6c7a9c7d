// Package apperr defines the error taxonomy used across the control plane's
// HTTP surface. A single Error type carries both a machine-checkable kind and
// the HTTP status it maps to, so handlers can return plain errors and let the
// outermost layer translate them into a JSON response body.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Kind classifies an error for status-code mapping and logging.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindLimitExceeded
	KindConflict
	KindDatabase
	KindInfra
)

// Error is the error type every handler and service in this codebase returns.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.err }

func new(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func NotFound() *Error                { return new(KindNotFound, "not found") }
func BadRequest(msg string) *Error    { return new(KindBadRequest, msg) }
func Unauthorized() *Error            { return new(KindUnauthorized, "unauthorized") }
func Forbidden(msg string) *Error     { return new(KindForbidden, msg) }
func LimitExceeded(msg string) *Error { return new(KindLimitExceeded, msg) }
func Conflict(msg string) *Error      { return new(KindConflict, msg) }
func Internal(msg string) *Error      { return new(KindInternal, msg) }

// Database wraps a store-layer error, mapping gorm.ErrRecordNotFound to
// 404 — everything else becomes a 500.
func Database(err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Msg: "not found", err: err}
	}
	return &Error{Kind: KindDatabase, Msg: "database error", err: err}
}

// Infra wraps an error returned by a VPS provider backend.
func Infra(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindInfra, Msg: err.Error(), err: err}
}

// Status returns the HTTP status code this error maps to.
func (e *Error) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindLimitExceeded:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindDatabase:
		return http.StatusInternalServerError
	case KindInfra:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// As reports whether err is (or wraps) an *Error, the same way errors.As works.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Wrap converts an arbitrary error into an *Error, defaulting to Internal if
// it isn't already one of ours. Useful at the boundary of handler functions
// that call into packages returning plain errors.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return &Error{Kind: KindInternal, Msg: "internal error", err: err}
}
