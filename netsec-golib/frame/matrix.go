package frame

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// Matrix is a dense row-major numeric matrix.
type Matrix [][]float64

// Dims returns the number of rows and the number of columns of the first row.
func (m Matrix) Dims() (int, int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

// HasMissing returns true if any cell is Missing.
func (m Matrix) HasMissing() bool {
	for _, row := range m {
		for _, v := range row {
			if IsMissing(v) {
				return true
			}
		}
	}
	return false
}

// SplitLabel separates the last column as labels.
func (m Matrix) SplitLabel() (Matrix, []float64, error) {
	x := make(Matrix, 0, len(m))
	y := make([]float64, 0, len(m))
	for i, row := range m {
		if len(row) < 2 {
			return nil, nil, fmt.Errorf("row %d has %d columns, need features and a label", i, len(row))
		}
		x = append(x, row[:len(row)-1])
		y = append(y, row[len(row)-1])
	}
	return x, y, nil
}

// AppendLabel returns a new matrix with y appended as the last column of each row.
func (m Matrix) AppendLabel(y []float64) (Matrix, error) {
	if len(y) != len(m) {
		return nil, fmt.Errorf("%d labels for %d rows", len(y), len(m))
	}
	out := make(Matrix, len(m))
	for i, row := range m {
		r := make([]float64, 0, len(row)+1)
		r = append(r, row...)
		out[i] = append(r, y[i])
	}
	return out, nil
}

// EncodeMsg implements msgp.Encodable
func (m Matrix) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(uint32(len(m))); err != nil {
		return err
	}
	for _, row := range m {
		if err := WriteFloats(w, row); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsg implements msgp.Decodable
func (m *Matrix) DecodeMsg(r *msgp.Reader) error {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	out := make(Matrix, 0, n)
	for i := uint32(0); i < n; i++ {
		row, err := ReadFloats(r)
		if err != nil {
			return err
		}
		out = append(out, row)
	}
	*m = out
	return nil
}

// WriteFloats writes a length-prefixed float64 array.
func WriteFloats(w *msgp.Writer, xs []float64) error {
	if err := w.WriteArrayHeader(uint32(len(xs))); err != nil {
		return err
	}
	for _, x := range xs {
		if err := w.WriteFloat64(x); err != nil {
			return err
		}
	}
	return nil
}

// ReadFloats reads an array written by WriteFloats.
func ReadFloats(r *msgp.Reader) ([]float64, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		if out[i], err = r.ReadFloat64(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
