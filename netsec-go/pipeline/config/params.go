package config

import (
	"fmt"

	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	yaml "gopkg.in/yaml.v2"
)

const (
	defaultScoring = "f1"
	defaultFolds   = 3
)

// ModelParams declares the hyperparameter grid of each model family and how candidates are scored.
type ModelParams struct {
	// Scoring is the test-set score used to rank families: f1, accuracy or r2
	Scoring string `yaml:"scoring"`
	// CV is the number of cross-validation folds in the grid search
	CV int `yaml:"cv"`
	// Grids maps a model family name to parameter name to candidate values
	Grids map[string]map[string][]interface{} `yaml:"models"`
}

// LoadModelParams reads a model parameter declaration from a local path or s3 URI.
func LoadModelParams(path string) (*ModelParams, error) {
	buf, err := fileutil.ReadFile(path)
	if err != nil {
		return nil, errors.E(errors.ConfigError, err, "reading model params %s", path)
	}
	p, err := ParseModelParams(buf)
	if err != nil {
		return nil, errors.E(errors.ConfigError, err, "parsing model params %s", path)
	}
	return p, nil
}

// ParseModelParams parses a model parameter declaration, filling in defaults.
func ParseModelParams(buf []byte) (*ModelParams, error) {
	var p ModelParams
	if err := yaml.Unmarshal(buf, &p); err != nil {
		return nil, err
	}
	if p.Scoring == "" {
		p.Scoring = defaultScoring
	}
	switch p.Scoring {
	case "f1", "accuracy", "r2":
	default:
		return nil, fmt.Errorf("unknown scoring %q", p.Scoring)
	}
	if p.CV == 0 {
		p.CV = defaultFolds
	}
	if p.CV < 2 {
		return nil, fmt.Errorf("cv must be at least 2, got %d", p.CV)
	}
	if p.Grids == nil {
		p.Grids = make(map[string]map[string][]interface{})
	}
	for model, grid := range p.Grids {
		for name, values := range grid {
			if len(values) == 0 {
				return nil, fmt.Errorf("%s: parameter %s has no candidate values", model, name)
			}
		}
	}
	return &p, nil
}
