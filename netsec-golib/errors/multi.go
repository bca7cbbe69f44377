package errors

import (
	"strings"
)

// List is a non-empty list of errors collected while running several independent steps.
type List []error

// Error implements error
func (l List) Error() string {
	parts := make([]string, 0, len(l))
	for _, err := range l {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "\n")
}

// Append adds a (possibly nil) error to a (possibly nil) error, flattening lists.
// The result is nil only if both inputs are nil.
func Append(errs error, err error) error {
	if err == nil {
		return errs
	}
	if errs == nil {
		return err
	}
	var out List
	for _, e := range []error{errs, err} {
		if l, ok := e.(List); ok {
			out = append(out, l...)
		} else {
			out = append(out, e)
		}
	}
	return out
}

// Defer is a helper method for deferring error-returning functions
func Defer(err *error, f func() error) {
	*err = Append(*err, f())
}
