package tracker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	"github.com/netsec-ml/netsec/netsec-golib/serialization"
	uuid "github.com/satori/go.uuid"
)

// FileTracker stores each run as a directory under a local root. Models are kept as plain
// artifacts; nothing is registered.
type FileTracker struct {
	Root string
}

// NewFileTracker creates a tracker rooted at dir.
func NewFileTracker(dir string) *FileTracker {
	return &FileTracker{Root: dir}
}

type fileRunMeta struct {
	RunID         string             `yaml:"run_id"`
	Experiment    string             `yaml:"experiment"`
	PipelineRunID string             `yaml:"pipeline_run_id"`
	ModelName     string             `yaml:"model_name"`
	Stage         string             `yaml:"stage"`
	Params        map[string]string  `yaml:"params"`
	Metrics       map[string]float64 `yaml:"metrics"`
	Artifact      string             `yaml:"artifact,omitempty"`
	Time          string             `yaml:"time"`
}

// LogRun implements Tracker
func (f *FileTracker) LogRun(ctx context.Context, run Run) (Result, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Result{}, errors.E(errors.TrackingError, err, "generating run id")
	}
	runID := fmt.Sprintf("%x", id.Bytes())
	dir := filepath.Join(f.Root, run.experiment(), runID)

	meta := fileRunMeta{
		RunID:         runID,
		Experiment:    run.experiment(),
		PipelineRunID: run.PipelineRunID,
		ModelName:     run.ModelName,
		Stage:         run.Stage,
		Params:        stringParams(run),
		Metrics:       run.metrics(),
		Time:          time.Now().UTC().Format(time.RFC3339),
	}
	if run.ModelPath != "" {
		meta.Artifact = filepath.Join(dir, "artifacts", "model", filepath.Base(run.ModelPath))
		if err := fileutil.CopyFile(run.ModelPath, meta.Artifact); err != nil {
			return Result{}, errors.E(errors.TrackingError, err, "logging model artifact")
		}
	}
	if err := serialization.Encode(filepath.Join(dir, "meta.yaml"), meta); err != nil {
		return Result{}, errors.E(errors.TrackingError, err, "writing run metadata")
	}
	return Result{RunID: runID}, nil
}

// Close implements Tracker
func (f *FileTracker) Close() error {
	return nil
}

func stringParams(run Run) map[string]string {
	out := make(map[string]string, len(run.Params)+1)
	for k, v := range run.Params {
		out[k] = fmt.Sprint(v)
	}
	out["model_name"] = run.ModelName
	return out
}
