// Package errors provides the error handling primitives used throughout
// mrcore. It wraps github.com/pkg/errors so that every error generated by
// the module carries a stack trace, and adds a Fatal/IsFatal pair to mark
// the validation-style errors that must surface to the invoker unchanged
// rather than being swallowed by cancellation.
package errors

import (
	"github.com/pkg/errors"
)

// New, Errorf, Wrap, Wrapf, WithStack and Cause re-export the pkg/errors
// equivalents so callers only ever import this package.
var (
	New      = errors.New
	Errorf   = errors.Errorf
	Wrap     = errors.Wrap
	Wrapf    = errors.Wrapf
	WithStack = errors.WithStack
	Cause    = errors.Cause
	Is       = errors.Is
	As       = errors.As
)

// fatalError marks an error as a validation failure that must be surfaced to
// the invoker before any fan-out starts (alignment mismatch, too many input
// vectors, malformed chunk key, ...). retry.Backend does not inspect it and
// treats it like any other error.
type fatalError struct {
	error
}

func (f fatalError) Error() string {
	return "Fatal: " + f.error.Error()
}

func (f fatalError) Unwrap() error {
	return f.error
}

// Fatal creates an error that IsFatal will report as fatal.
func Fatal(s string) error {
	return fatalError{errors.New(s)}
}

// Fatalf creates a fatal error with a formatted message.
func Fatalf(s string, args ...interface{}) error {
	return fatalError{errors.Errorf(s, args...)}
}

// IsFatal returns whether err (or something it wraps) was created with
// Fatal/Fatalf.
func IsFatal(err error) bool {
	var f fatalError
	return As(err, &f)
}
