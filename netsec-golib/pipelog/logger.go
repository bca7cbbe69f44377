package pipelog

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
)

var flags = log.LstdFlags | log.Lshortfile | log.Lmicroseconds

// Interface encapsulates the relevant methods of log.Logger
type Interface interface {
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// Logger is the handle passed to every pipeline stage. It prefixes lines with
// the pipeline name and run id and keeps a table of stage durations.
type Logger struct {
	Default   *log.Logger
	Durations Durations
}

// New creates a Logger writing to w.
func New(w io.Writer, pipeline, runID string) *Logger {
	prefix := fmt.Sprintf("[pipeline=%s run=%s] ", pipeline, runID)
	return &Logger{
		Default: log.New(w, prefix, flags),
	}
}

// NewStderr creates a Logger writing to os.Stderr.
func NewStderr(pipeline, runID string) *Logger {
	return New(os.Stderr, pipeline, runID)
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return &Logger{
		Default: log.New(ioutil.Discard, "", 0),
	}
}

// Printf implements Interface
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Default.Output(2, fmt.Sprintf(format, v...))
}

// Println implements Interface
func (l *Logger) Println(v ...interface{}) {
	l.Default.Output(2, fmt.Sprintln(v...))
}

// Warnf logs a line tagged as a warning; used for advisory conditions that do not fail a stage.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.Default.Output(2, "WARN "+fmt.Sprintf(format, v...))
}

// Stage returns a derived Logger whose lines are tagged with the stage name.
// Durations recorded on the derived logger are not shared with the parent.
func (l *Logger) Stage(name string) *Logger {
	return &Logger{
		Default: log.New(l.Default.Writer(), l.Default.Prefix()+"["+name+"] ", l.Default.Flags()),
	}
}
