package types

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; every *Error carries exactly one kind.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
	ErrPermission        = errors.New("permission denied")
	ErrStorage           = errors.New("storage failure")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("invalid input")
)

// Error is a domain error with a caller-facing message naming the violated
// precondition. Kind is one of the sentinels above; Err is the optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's kind so errors.Is(err, ErrNotFound) works through wrapping.
func (e *Error) Is(target error) bool { return e.Kind == target }

func newError(kind error, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

func NotFound(format string, args ...any) *Error {
	return newError(ErrNotFound, nil, format, args...)
}

func Duplicate(format string, args ...any) *Error {
	return newError(ErrDuplicate, nil, format, args...)
}

func PermissionDenied(format string, args ...any) *Error {
	return newError(ErrPermission, nil, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return newError(ErrInvalidTransition, nil, format, args...)
}

func Invalid(format string, args ...any) *Error {
	return newError(ErrValidation, nil, format, args...)
}

// Storage wraps an I/O failure. A nil cause yields nil so call sites can
// write `return types.Storage(err, "...")` unconditionally.
func Storage(cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	var de *Error
	if errors.As(cause, &de) {
		return cause
	}
	return newError(ErrStorage, cause, format, args...)
}
