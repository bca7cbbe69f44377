package errors

import (
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindRecordsLocation(t *testing.T) {
	err := E(IngestionError, io.EOF, "collection %s is empty", "phishing")

	e, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, IngestionError, e.Kind)
	assert.Equal(t, "errors_test.go", e.File)
	assert.NotZero(t, e.Line)
	assert.True(t, strings.Contains(err.Error(), "collection phishing is empty"))
	assert.True(t, strings.Contains(err.Error(), "EOF"))

	_, _, line, _ := runtime.Caller(0)
	here := E(ConfigError, nil, "bad params").(*Error)
	assert.Equal(t, line+1, here.Line)
	assert.Equal(t, "errors_test.go", here.File)
	assert.Equal(t, "error occurred in [errors_test.go] line ["+strconv.Itoa(here.Line)+"] kind [ConfigError]: bad params", here.Error())

	require.NotEmpty(t, here.StackTrace())
	assert.Contains(t, fmt.Sprintf("%+v", here.StackTrace()[0]), "TestKindRecordsLocation")
}

func TestKindOfWrapped(t *testing.T) {
	err := E(TrainingError, nil, "no model fit")
	wrapped := Wrapf(err, "stage %s", "model_trainer")

	assert.Equal(t, TrainingError, KindOf(wrapped))
	assert.True(t, Is(wrapped, TrainingError))
	assert.False(t, Is(wrapped, ValidationError))
	assert.Equal(t, Unknown, KindOf(New("plain")))
	assert.False(t, Is(nil, TrainingError))
}

func TestAppend(t *testing.T) {
	assert.Nil(t, Append(nil, nil))

	err0 := New("error0")
	require.Equal(t, err0, Append(nil, err0))
	require.Equal(t, err0, Append(err0, nil))

	err1 := New("error1")
	err2 := New("error2")
	errs := Append(Append(err0, err1), err2)
	require.Len(t, errs.(List), 3)
	assert.Equal(t, "error0\nerror1\nerror2", errs.Error())
}

func TestDefer(t *testing.T) {
	f := func() (err error) {
		defer Defer(&err, func() error { return New("close failed") })
		return nil
	}
	assert.EqualError(t, f(), "close failed")
}

func TestRoot(t *testing.T) {
	assert.Nil(t, Root(nil))
	assert.Equal(t, io.EOF, Root(io.EOF))
	err := Wrapf(E(IngestionError, Wrapf(io.EOF, "reading"), "exporting"), "stage")
	assert.Equal(t, io.EOF, Root(err))

	bare := E(TrainingError, nil, "no model")
	assert.EqualError(t, Root(Wrapf(bare, "stage")), "no model")
	assert.Equal(t, Cause(err), Root(err))
	assert.EqualError(t, Wrapf(nil, "nothing %d", 1), "nothing 1")
}
