// Package pipeline drives the training stages in order: ingestion, validation,
// transformation and training.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/ingest"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/train"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/transform"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/validate"
	"github.com/netsec-ml/netsec/netsec-go/tracker"
	"github.com/netsec-ml/netsec/netsec-golib/awsutil"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/pipelog"
)

// State of a pipeline run
type State int

const (
	// Idle means Run has not been called
	Idle State = iota
	// Ingesting means the collection is being exported and split
	Ingesting
	// Validating means partitions are checked against the schema
	Validating
	// Transforming means the imputer is being fit and applied
	Transforming
	// Training means the catalog is being searched
	Training
	// Complete is terminal: every stage succeeded
	Complete
	// Failed is terminal: a stage could not produce its artifact
	Failed
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ingesting:
		return "ingesting"
	case Validating:
		return "validating"
	case Transforming:
		return "transforming"
	case Training:
		return "training"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Deps are the external collaborators of a pipeline.
type Deps struct {
	Source ingest.DocumentSource
	// Tracker is optional
	Tracker tracker.Tracker
	// Schema is loaded from the configured schema path when nil
	Schema *config.Schema
	Log    *pipelog.Logger
	// Workers bounds grid search parallelism; 0 means one worker
	Workers int
	// BucketName enables syncing artifacts to s3 after a complete run
	BucketName string
}

// Result carries every artifact produced, including those produced before a failure.
type Result struct {
	RunID          string
	State          State
	Ingestion      *ingest.Artifact
	Validation     *validate.Artifact
	Transformation *transform.Artifact
	Trainer        *train.Artifact
	Durations      map[string]time.Duration
	// SyncErr is set when the s3 sync failed; it does not change State
	SyncErr error
}

// Pipeline is a single use driver for one run.
type Pipeline struct {
	cfg  config.RunConfig
	deps Deps
	log  *pipelog.Logger

	m     sync.Mutex
	state State
	ran   bool
}

// New creates a pipeline for cfg.
func New(cfg config.RunConfig, deps Deps) *Pipeline {
	log := deps.Log
	if log == nil {
		log = pipelog.NewStderr(cfg.Constants.PipelineName, cfg.RunID)
	}
	return &Pipeline{cfg: cfg, deps: deps, log: log}
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.m.Lock()
	defer p.m.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.m.Lock()
	defer p.m.Unlock()
	p.state = s
}

// Run executes every stage in order. The first stage error moves the pipeline to Failed and is
// returned unmodified. A pipeline can only be run once.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	p.m.Lock()
	if p.ran {
		p.m.Unlock()
		return Result{}, errors.Errorf("pipeline %s has already been run", p.cfg.RunID)
	}
	p.ran = true
	p.m.Unlock()

	res := Result{RunID: p.cfg.RunID}
	err := p.run(ctx, &res)
	res.Durations = p.log.Durations.Map()
	p.log.Durations.Flush(p.log)
	if err != nil {
		p.setState(Failed)
		res.State = Failed
		p.log.Printf("pipeline failed: %v", err)
		return res, err
	}
	p.setState(Complete)
	res.State = Complete

	if p.deps.BucketName != "" {
		res.SyncErr = p.sync()
	}
	p.log.Printf("pipeline complete, model at %s", res.Trainer.ModelPath)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, res *Result) error {
	p.log.Printf("starting run %s in %s", p.cfg.RunID, p.cfg.ArtifactDir)

	schema := p.deps.Schema
	if schema == nil {
		var err error
		if schema, err = config.LoadSchema(p.cfg.Constants.SchemaFilePath); err != nil {
			return err
		}
	}

	err := p.stage(ctx, Ingesting, "data_ingestion", func(log *pipelog.Logger) error {
		art, err := ingest.New(p.cfg.DataIngestion(), p.deps.Source, log).Run(ctx)
		if err == nil {
			res.Ingestion = &art
		}
		return err
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, Validating, "data_validation", func(log *pipelog.Logger) error {
		art, err := validate.New(p.cfg.DataValidation(), schema, *res.Ingestion, p.cfg.RunID, log).Run()
		if err == nil {
			res.Validation = &art
		}
		return err
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, Transforming, "data_transformation", func(log *pipelog.Logger) error {
		art, err := transform.New(p.cfg.DataTransformation(), *res.Validation, log).Run()
		if err == nil {
			res.Transformation = &art
		}
		return err
	})
	if err != nil {
		return err
	}

	return p.stage(ctx, Training, "model_trainer", func(log *pipelog.Logger) error {
		workers := p.deps.Workers
		if workers < 1 {
			workers = 1
		}
		art, err := train.New(p.cfg.ModelTrainer(), *res.Transformation, p.deps.Tracker, p.cfg.RunID, workers, log).Run(ctx)
		if err == nil {
			res.Trainer = &art
		}
		return err
	})
}

func (p *Pipeline) stage(ctx context.Context, s State, name string, fn func(*pipelog.Logger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.setState(s)
	start := time.Now()
	err := fn(p.log.Stage(name))
	p.log.Durations.Record(name, time.Since(start))
	return err
}

// sync copies the run artifacts and the final model to the configured bucket.
func (p *Pipeline) sync() error {
	var errs error
	for _, dir := range []struct{ local, remote string }{
		{p.cfg.ArtifactDir, awsutil.Join("s3://"+p.deps.BucketName, "artifact", p.cfg.RunID)},
		{p.cfg.FinalModelDir, awsutil.Join("s3://"+p.deps.BucketName, "final_model")},
	} {
		n, err := awsutil.SyncDir(dir.local, dir.remote)
		if err != nil {
			p.log.Warnf("syncing %s to %s failed: %v", dir.local, dir.remote, err)
			errs = errors.Append(errs, err)
			continue
		}
		p.log.Printf("synced %d files from %s to %s", n, dir.local, dir.remote)
	}
	return errs
}
