// Package frame holds small numeric tables with named columns. Missing cells are NaN.
package frame

import (
	"fmt"
	"math"
	"math/rand"
)

// Missing is the canonical missing-value marker.
var Missing = math.NaN()

// IsMissing returns true if v is the missing-value marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Frame is an ordered collection of rows sharing the same named columns.
type Frame struct {
	Columns []string
	Rows    [][]float64
}

// New creates an empty frame with the given columns.
func New(columns ...string) *Frame {
	return &Frame{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Append adds a row, which must have one value per column.
func (f *Frame) Append(row []float64) error {
	if len(row) != len(f.Columns) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(row), len(f.Columns))
	}
	f.Rows = append(f.Rows, row)
	return nil
}

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the values of the named column.
func (f *Frame) Column(name string) ([]float64, error) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("no column %s", name)
	}
	out := make([]float64, 0, len(f.Rows))
	for _, row := range f.Rows {
		out = append(out, row[idx])
	}
	return out, nil
}

// Subset returns a new frame containing the rows at the given indices, in that order.
// Rows are copied.
func (f *Frame) Subset(idx []int) *Frame {
	out := New(f.Columns...)
	out.Rows = make([][]float64, 0, len(idx))
	for _, i := range idx {
		out.Rows = append(out.Rows, append([]float64(nil), f.Rows[i]...))
	}
	return out
}

// Select returns a new frame holding the named columns in the given order. Rows are copied.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	idx := make([]int, len(columns))
	for i, name := range columns {
		if idx[i] = f.ColumnIndex(name); idx[i] < 0 {
			return nil, fmt.Errorf("no column %s", name)
		}
	}
	out := New(columns...)
	out.Rows = make([][]float64, 0, len(f.Rows))
	for _, row := range f.Rows {
		r := make([]float64, len(idx))
		for i, j := range idx {
			r[i] = row[j]
		}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

// Split partitions the frame at random into a train and test frame. The test
// partition receives ceil(testRatio * Len()) rows; every row lands in exactly one partition.
func (f *Frame) Split(testRatio float64, rng *rand.Rand) (train, test *Frame, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("split ratio must be in (0, 1), got %v", testRatio)
	}
	n := f.Len()
	nTest := int(math.Ceil(testRatio * float64(n)))
	if n > 0 && nTest >= n {
		return nil, nil, fmt.Errorf("split ratio %v leaves no training rows out of %d", testRatio, n)
	}

	perm := rng.Perm(n)
	return f.Subset(perm[nTest:]), f.Subset(perm[:nTest]), nil
}

// XY splits the frame into a feature matrix and a label vector using the named label column.
// Feature columns keep their relative order.
func (f *Frame) XY(label string) (Matrix, []float64, []string, error) {
	li := f.ColumnIndex(label)
	if li < 0 {
		return nil, nil, nil, fmt.Errorf("no label column %s", label)
	}
	var names []string
	for i, c := range f.Columns {
		if i != li {
			names = append(names, c)
		}
	}

	x := make(Matrix, 0, len(f.Rows))
	y := make([]float64, 0, len(f.Rows))
	for _, row := range f.Rows {
		feat := make([]float64, 0, len(row)-1)
		feat = append(feat, row[:li]...)
		feat = append(feat, row[li+1:]...)
		x = append(x, feat)
		y = append(y, row[li])
	}
	return x, y, names, nil
}
