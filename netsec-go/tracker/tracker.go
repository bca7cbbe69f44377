// Package tracker reports training metrics and model artifacts to an experiment tracking backend.
package tracker

import (
	"context"
	"strings"

	"github.com/netsec-ml/netsec/netsec-go/classifier"
	"github.com/netsec-ml/netsec/netsec-golib/envutil"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
)

const (
	// DefaultExperiment groups every training run
	DefaultExperiment = "Network Security Models"
	// RegisteredModelName is the registry entry for models logged to a persistent backend
	RegisteredModelName = "Best_Model"
	// DefaultURI is used when no tracking endpoint is configured
	DefaultURI = "file://./mlruns"
)

// Run is one set of metrics for a fitted model.
type Run struct {
	Experiment    string
	PipelineRunID string
	ModelName     string
	// Stage is the partition the metrics were computed on: train or test
	Stage  string
	Params classifier.Params
	Metric classifier.Metric
	// ModelPath is a local file holding the encoded model
	ModelPath string
}

// Result describes what the backend recorded.
type Result struct {
	RunID string
	// Registered is false when the model was only stored as a plain artifact
	Registered bool
	Version    int
}

// Tracker records runs. Implementations are safe for sequential use only.
type Tracker interface {
	LogRun(ctx context.Context, run Run) (Result, error)
	Close() error
}

// New picks a backend from the scheme of uri: file:// (or a bare path) stores runs on disk,
// http(s):// talks to an MLflow tracking server and postgres:// records runs in a SQL registry.
func New(uri string) (Tracker, error) {
	switch {
	case uri == "":
		return NewFileTracker(strings.TrimPrefix(DefaultURI, "file://")), nil
	case strings.HasPrefix(uri, "file://"):
		return NewFileTracker(strings.TrimPrefix(uri, "file://")), nil
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		t := NewMLflowTracker(uri, nil)
		t.Username = envutil.GetenvDefault("MLFLOW_TRACKING_USERNAME", "")
		t.Password = envutil.GetenvDefault("MLFLOW_TRACKING_PASSWORD", "")
		return t, nil
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return NewSQLTracker(uri)
	case !strings.Contains(uri, "://"):
		return NewFileTracker(uri), nil
	default:
		return nil, errors.E(errors.TrackingError, nil, "unsupported tracking uri %s", uri)
	}
}

func (r Run) experiment() string {
	if r.Experiment == "" {
		return DefaultExperiment
	}
	return r.Experiment
}

func (r Run) metrics() map[string]float64 {
	return map[string]float64{
		"f1_score":     r.Metric.F1,
		"precision":    r.Metric.Precision,
		"recall_score": r.Metric.Recall,
	}
}
