package validate

import (
	"fmt"
	"math"
	"sort"

	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
)

// SchemaReport is the outcome of checking one partition against the declared schema.
type SchemaReport struct {
	Status            bool     `yaml:"status"`
	ExpectedColumns   int      `yaml:"expected_columns"`
	Columns           int      `yaml:"columns"`
	MissingColumns    []string `yaml:"missing_columns,omitempty"`
	UnexpectedColumns []string `yaml:"unexpected_columns,omitempty"`
	Violations        []string `yaml:"violations,omitempty"`
}

// CheckSchema compares the columns and values of f with the schema. It does not depend on row order.
func CheckSchema(f *frame.Frame, s *config.Schema) SchemaReport {
	r := SchemaReport{ExpectedColumns: len(s.Columns), Columns: len(f.Columns)}

	have := make(map[string]bool)
	for _, name := range f.Columns {
		have[name] = true
		if _, ok := s.Lookup(name); !ok {
			r.UnexpectedColumns = append(r.UnexpectedColumns, name)
		}
	}
	for _, c := range s.Columns {
		if !have[c.Name] {
			r.MissingColumns = append(r.MissingColumns, c.Name)
		}
	}
	sort.Strings(r.UnexpectedColumns)

	for _, c := range s.Columns {
		if !have[c.Name] {
			continue
		}
		values, _ := f.Column(c.Name)
		r.Violations = append(r.Violations, checkValues(c, values)...)
	}

	r.Status = len(f.Columns) == len(s.Columns) &&
		len(r.MissingColumns) == 0 &&
		len(r.UnexpectedColumns) == 0 &&
		len(r.Violations) == 0
	return r
}

func checkValues(c config.Column, values []float64) []string {
	allowed := make(map[float64]bool)
	for _, v := range c.Allowed {
		allowed[v] = true
	}
	var nonIntegral, disallowed int
	for _, v := range values {
		if frame.IsMissing(v) {
			continue
		}
		if c.Type == "int64" && v != math.Trunc(v) {
			nonIntegral++
		}
		if len(allowed) > 0 && !allowed[v] {
			disallowed++
		}
	}
	var out []string
	if nonIntegral > 0 {
		out = append(out, fmt.Sprintf("%s: %d non-integral values for type int64", c.Name, nonIntegral))
	}
	if disallowed > 0 {
		out = append(out, fmt.Sprintf("%s: %d values outside %v", c.Name, disallowed, c.Allowed))
	}
	return out
}
