// Package fabricerr provides the typed error taxonomy shared across every
// retrieval-fabric component.
package fabricerr

import (
	"errors"
	"fmt"
)

// Kind tags an Error with a machine-readable category so callers can branch
// on errors.As without string matching.
type Kind string

const (
	Configuration          Kind = "configuration"
	Validation             Kind = "validation"
	NotFound               Kind = "not_found"
	AlreadyExists          Kind = "already_exists"
	Storage                Kind = "storage"
	IndexCorrupt           Kind = "index_corrupt"
	Embedding              Kind = "embedding"
	Tensor                 Kind = "tensor"
	AllocationDenied       Kind = "allocation_denied"
	Timeout                Kind = "timeout"
	MathematicalIntegrity  Kind = "mathematical_integrity"
	InvalidQuery           Kind = "invalid_query"
)

// Error is the fabric's single error type. Every user-visible failure
// carries a Kind plus a one-line human Reason; Field/Value are populated
// for Validation errors, Err wraps an underlying cause when one exists.
type Error struct {
	Kind   Kind
	Reason string
	Field  string
	Value  string
	Err    error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s value=%q)", e.Kind, e.Reason, e.Field, e.Value)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, &fabricerr.Error{Kind: X}) style comparisons by Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func Field(kind Kind, field, reason, value string) *Error {
	return &Error{Kind: kind, Reason: reason, Field: field, Value: value}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsTransient reports whether err is a Storage error eligible for retry.
// MathematicalIntegrity is explicitly excluded even if it wraps a Storage
// cause: it must never be silently retried into a different answer.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == Storage
}
