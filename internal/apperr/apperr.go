// Package apperr defines the error taxonomy shared by the dispatch core.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for callers and transports.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindNotPermitted
	KindInvalidTransition
	KindValidation
	KindTimeout
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindNotPermitted:
		return "not permitted"
	case KindInvalidTransition:
		return "invalid transition"
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error carries a Kind, a human readable message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrNotPermitted      = &Error{Kind: KindNotPermitted}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
)

func newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error     { return newf(KindNotFound, format, args...) }
func NotPermitted(format string, args ...any) error { return newf(KindNotPermitted, format, args...) }
func Validation(format string, args ...any) error   { return newf(KindValidation, format, args...) }

// InvalidTransition reports a state machine guard violation.
func InvalidTransition(entity, id string, from, to any) error {
	return newf(KindInvalidTransition, "%s %s cannot move from %v to %v", entity, id, from, to)
}

// Unavailable wraps a downstream failure (drone link, broker, store connectivity).
func Unavailable(err error, format string, args ...any) error {
	return &Error{Kind: KindUnavailable, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Timeout wraps a downstream call that exceeded its deadline.
func Timeout(err error, format string, args ...any) error {
	return &Error{Kind: KindTimeout, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Wrap classifies an error coming back from the store. Errors that already carry
// a Kind pass through untouched.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Msg: msg, Err: err}
	}
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// Retryable reports whether the caller may retry the operation unchanged.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindTimeout || k == KindUnavailable
}
