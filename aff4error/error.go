// Package aff4error defines the error taxonomy shared by every AFF4
// subsystem. Errors are plain Go errors wrapped with a Kind so callers
// can branch on category without string matching, while still
// supporting errors.Is/errors.As/errors.Unwrap through Cause.
package aff4error

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind categorizes an error without naming a concrete type. Continue
// is deliberately not represented here since it is an imager/CLI
// concept the core must never surface.
type Kind int

const (
	// NotFound means a URN, predicate, member or range was absent.
	NotFound Kind = iota
	// InvalidInput means a malformed argument: odd-length hex, a URN
	// escaping its volume, an out-of-range offset, and so on.
	InvalidInput
	// ParsingError means an on-disk structure was corrupt or did not
	// match its expected layout (bad magic, truncated header, ...).
	ParsingError
	// IoError means the underlying OS I/O failed, or a stream that
	// isn't writable/seekable/sizeable was asked to do so anyway.
	IoError
	// NotImplemented means an unsupported compression method or
	// symbolic stream kind was requested.
	NotImplemented
	// IncompatibleTypes means a Get() found values but none matched
	// the requested RDFValue's runtime type.
	IncompatibleTypes
	// Aborted means a ProgressContext.Report callback returned false.
	Aborted
	// MemoryError means a codec failed to initialize.
	MemoryError
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case InvalidInput:
		return "InvalidInput"
	case ParsingError:
		return "ParsingError"
	case IoError:
		return "IoError"
	case NotImplemented:
		return "NotImplemented"
	case IncompatibleTypes:
		return "IncompatibleTypes"
	case Aborted:
		return "Aborted"
	case MemoryError:
		return "MemoryError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a Kind-tagged error that wraps an underlying cause (which
// may be nil for errors raised directly against a message).
type Error struct {
	kind  Kind
	msg   string
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

// Cause lets github.com/pkg/errors (and errors.Unwrap via the standard
// Unwrap method below) walk the chain down to the root cause.
func (e *Error) Cause() error { return e.cause }

// Unwrap supports errors.Is/errors.As from the standard library.
func (e *Error) Unwrap() error { return e.cause }

// Kind reports the error's category.
func (e *Error) Kind() Kind { return e.kind }

// New creates a new Kind-tagged error with no underlying cause.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a message and a Kind, preserving err as the
// Cause. If err is nil, Wrap returns nil (mirrors errors.Wrap).
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, cause: err}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), cause: err}
}

// Is reports whether err (or any error in its Cause/Unwrap chain) has
// the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ke, ok := err.(interface{ Kind() Kind }); ok && ke.Kind() == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
