package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
)

// DefaultMissingTokens are cell values read as missing, in addition to the empty string.
var DefaultMissingTokens = []string{"na", "NA", "nan", "NaN"}

// ReadCSV reads a frame with a header row. Empty cells and missingTokens are read
// as Missing; any other non-numeric cell is an error.
func ReadCSV(r io.Reader, missingTokens []string) (*Frame, error) {
	missing := make(map[string]bool)
	for _, tok := range missingTokens {
		missing[tok] = true
	}

	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv has no header")
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	f := New(header...)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]float64, len(rec))
		for i, cell := range rec {
			cell = strings.TrimSpace(cell)
			if cell == "" || missing[cell] {
				row[i] = Missing
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %q is not numeric", line, header[i], cell)
			}
			row[i] = v
		}
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}

// LoadCSV reads a frame from a local or s3 path.
func LoadCSV(path string, missingTokens []string) (*Frame, error) {
	r, err := fileutil.NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	f, err := ReadCSV(r, missingTokens)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %v", path, err)
	}
	return f, nil
}

// WriteCSV writes the frame with a header row. Missing cells are written empty.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns); err != nil {
		return err
	}
	rec := make([]string, len(f.Columns))
	for _, row := range f.Rows {
		for i, v := range row {
			if IsMissing(v) {
				rec[i] = ""
			} else {
				rec[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the frame to a local or s3 path, creating parent directories
// and overwriting any existing file.
func (f *Frame) SaveCSV(path string) (err error) {
	w, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return err
	}
	defer errors.Defer(&err, w.Close)
	return f.WriteCSV(w)
}
