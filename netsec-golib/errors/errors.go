// Package errors carries the pipeline failure taxonomy and small helpers over github.com/pkg/errors.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errorf is re-exported from fmt
var Errorf = fmt.Errorf

// New is an alias to Errorf
var New = Errorf

// ErrorfWithStack is Errorf re-exported from github.com/pkg/errors
var ErrorfWithStack = errors.Errorf

// WithStack is re-exported from github.com/pkg/errors
var WithStack = errors.WithStack

// Cause is re-exported from github.com/pkg/errors
var Cause = errors.Cause

// Wrapf annotates err with a message and never returns nil: a nil err yields a plain error.
// The annotation keeps err reachable for KindOf.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return Errorf(format, args...)
	}
	return errors.WithMessage(err, fmt.Sprintf(format, args...))
}

// Root is Cause: the innermost error of a chain of *Error values and pkg/errors wrappers.
// A kinded error raised without a cause has its own message as root.
var Root = Cause
