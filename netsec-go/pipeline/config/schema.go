package config

import (
	"fmt"

	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	yaml "gopkg.in/yaml.v2"
)

// Column is one entry of the declared column contract.
type Column struct {
	Name string
	// Type is int64 or float64
	Type string
	// Allowed, when non-empty, lists every value the column may take
	Allowed []float64
}

// Schema is the column contract enforced by DataValidation.
type Schema struct {
	Columns          []Column
	NumericalColumns []string
}

type schemaFile struct {
	Columns          []yaml.MapSlice      `yaml:"columns"`
	NumericalColumns []string             `yaml:"numerical_columns"`
	AllowedValues    map[string][]float64 `yaml:"allowed_values"`
}

// LoadSchema reads a schema declaration from a local path or s3 URI.
func LoadSchema(path string) (*Schema, error) {
	buf, err := fileutil.ReadFile(path)
	if err != nil {
		return nil, errors.E(errors.ConfigError, err, "reading schema %s", path)
	}
	s, err := ParseSchema(buf)
	if err != nil {
		return nil, errors.E(errors.ConfigError, err, "parsing schema %s", path)
	}
	return s, nil
}

// ParseSchema parses a schema declaration of the form
//
//	columns:
//	  - name: int64
//	numerical_columns: [name]
//	allowed_values: {name: [-1, 1]}
func ParseSchema(buf []byte) (*Schema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return nil, err
	}
	if len(f.Columns) == 0 {
		return nil, fmt.Errorf("schema declares no columns")
	}

	s := &Schema{NumericalColumns: f.NumericalColumns}
	seen := make(map[string]bool)
	for i, item := range f.Columns {
		if len(item) != 1 {
			return nil, fmt.Errorf("column entry %d must have exactly one name, got %d", i, len(item))
		}
		name, ok := item[0].Key.(string)
		if !ok {
			return nil, fmt.Errorf("column entry %d has a non-string name %v", i, item[0].Key)
		}
		typ := fmt.Sprint(item[0].Value)
		switch typ {
		case "int64", "float64":
		default:
			return nil, fmt.Errorf("column %s has unsupported type %s", name, typ)
		}
		if seen[name] {
			return nil, fmt.Errorf("column %s declared twice", name)
		}
		seen[name] = true
		s.Columns = append(s.Columns, Column{Name: name, Type: typ, Allowed: f.AllowedValues[name]})
	}
	for name := range f.AllowedValues {
		if !seen[name] {
			return nil, fmt.Errorf("allowed values given for undeclared column %s", name)
		}
	}
	for _, name := range f.NumericalColumns {
		if !seen[name] {
			return nil, fmt.Errorf("numerical column %s is not declared", name)
		}
	}
	return s, nil
}

// Names returns the declared column names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Lookup returns the declared column with the given name.
func (s *Schema) Lookup(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// FeatureNames returns the declared columns other than target, in declaration order.
func (s *Schema) FeatureNames(target string) []string {
	var names []string
	for _, c := range s.Columns {
		if c.Name != target {
			names = append(names, c.Name)
		}
	}
	return names
}
