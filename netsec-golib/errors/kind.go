package errors

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Kind classifies the failures that abort a pipeline stage.
type Kind string

const (
	// Unknown is the kind of errors that were not created with E
	Unknown Kind = ""
	// IngestionError means the document store was unreachable or the collection was empty or malformed
	IngestionError Kind = "IngestionError"
	// ValidationError means the schema check could not be completed at all
	ValidationError Kind = "ValidationError"
	// TransformationError means the validated partitions could not be converted to a numeric matrix
	TransformationError Kind = "TransformationError"
	// TrainingError means no candidate model could be fit, or an upstream artifact is missing
	TrainingError Kind = "TrainingError"
	// ConfigError means a structured config file could not be loaded
	ConfigError Kind = "ConfigError"
	// TrackingError means the experiment tracker rejected a request
	TrackingError Kind = "TrackingError"
	// PredictionError means a model bundle could not be loaded or applied
	PredictionError Kind = "PredictionError"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Error carries the kind, the location it was raised from, a message and the underlying cause.
type Error struct {
	Kind    Kind
	File    string
	Line    int
	Message string
	// Err is the cause; for an error raised without one it is a plain error holding Message
	Err error

	stack errors.StackTrace
}

// E builds an *Error of the given kind. The caller's file and line are read from a
// github.com/pkg/errors stack taken here.
func E(kind Kind, cause error, format string, args ...interface{}) error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
	if cause == nil {
		e.Err = errors.New(e.Message)
	}
	e.stack = errors.WithStack(e.Err).(stackTracer).StackTrace()
	// frame 0 is E itself
	if len(e.stack) > 1 {
		e.stack = e.stack[1:]
		e.File = fmt.Sprintf("%s", e.stack[0])
		e.Line, _ = strconv.Atoi(fmt.Sprintf("%d", e.stack[0]))
	}
	return e
}

// Error implements error
func (e *Error) Error() string {
	s := fmt.Sprintf("error occurred in [%s] line [%d] kind [%s]: %s", e.File, e.Line, e.Kind, e.Message)
	if e.Err != nil && e.Err.Error() != e.Message {
		s += ": " + e.Err.Error()
	}
	return s
}

// Cause returns the underlying error for Cause
func (e *Error) Cause() error {
	return e.Err
}

// Unwrap returns the cause
func (e *Error) Unwrap() error {
	return e.Err
}

// StackTrace returns the stack from the point the error was raised.
func (e *Error) StackTrace() errors.StackTrace {
	return e.stack
}

// KindOf returns the kind of the outermost *Error in the chain, or Unknown.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Cause() error }:
			err = u.Cause()
		default:
			return Unknown
		}
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
