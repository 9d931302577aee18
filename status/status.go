// Package status provides the small error-kind vocabulary the storage core
// reports recoverable failures with, mirroring base/status.h's Status class.
package status

import "fmt"

// Kind classifies a recoverable failure reported by this module.
type Kind int

const (
	OK Kind = iota
	Cancelled
	InvalidArgument
	InternalError
	IOError
	EndOfStream
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "OK"
	case Cancelled:
		return "CANCELLED"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case InternalError:
		return "INTERNAL_ERROR"
	case IOError:
		return "IO_ERROR"
	case EndOfStream:
		return "END_OF_STREAM"
	default:
		return "UNKNOWN"
	}
}

// Error is an error carrying an explicit Kind, so callers can branch on the
// failure class instead of string-matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving it for errors.Is/As.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == kind
}
