// Package apierr defines the error-kind taxonomy shared by every component
// (spec §7). No third-party error-taxonomy library appears anywhere in the
// example pack; every repo that needs this hand-rolls it over the standard
// errors package, so this does too (see DESIGN.md).
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the closed taxonomy of error kinds from spec §7.
type Kind string

const (
	Validation          Kind = "ValidationError"
	NotFound            Kind = "NotFound"
	Unauthorized        Kind = "Unauthorized"
	Forbidden           Kind = "Forbidden"
	RateLimited         Kind = "RateLimited"
	ProviderUnavailable Kind = "ProviderUnavailable"
	Persistence         Kind = "PersistenceError"
	CapacityExceeded    Kind = "CapacityExceeded"
	Timeout             Kind = "Timeout"
	Internal            Kind = "Internal"
)

// Error carries a Kind plus human detail and propagates through the stack
// via errors.Is/As like any wrapped stdlib error.
type Error struct {
	Kind      Kind
	Detail    string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, apierr.ProviderUnavailable)-style kind checks by
// comparing against a sentinel *Error built with New(kind, "").
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap constructs an *Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

// KindOf extracts the Kind from err, defaulting to Internal when err isn't
// (or doesn't wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind to the status code §6/§7 specify.
func HTTPStatus(k Kind) int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case RateLimited:
		return http.StatusTooManyRequests
	case ProviderUnavailable, Persistence, CapacityExceeded, Timeout, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
