package pipeline

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/netsec-ml/netsec/netsec-go/docstore"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-go/tracker"
	"github.com/netsec-ml/netsec/netsec-golib/envutil"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/pipelog"
)

// Env names the external endpoints of a training run.
type Env struct {
	MongoURL    string
	TrackingURI string
	BucketName  string
}

// EnvFromOS reads MONGO_DB_URL, MLFLOW_TRACKING_URI and TRAINING_BUCKET_NAME.
func EnvFromOS() Env {
	return Env{
		MongoURL:    envutil.GetenvDefault("MONGO_DB_URL", ""),
		TrackingURI: envutil.GetenvDefault("MLFLOW_TRACKING_URI", tracker.DefaultURI),
		BucketName:  envutil.GetenvDefault("TRAINING_BUCKET_NAME", ""),
	}
}

// Train runs one pipeline started now against the collaborators named by env, logging
// to w (stderr when nil) under the run id. The document store is dialed inside the
// ingestion stage, so an unreachable store fails the run like any other ingestion error.
// A tracker that cannot be created disables tracking for the run.
func Train(ctx context.Context, c config.Constants, env Env, w io.Writer, workers int) (Result, error) {
	if env.MongoURL == "" {
		return Result{State: Failed}, errors.E(errors.ConfigError, nil, "MONGO_DB_URL is not set")
	}
	cfg := config.NewRunConfig(c, time.Now())
	if w == nil {
		w = os.Stderr
	}
	log := pipelog.New(w, c.PipelineName, cfg.RunID)

	store := docstore.NewLazy(env.MongoURL)
	defer store.Close(context.Background())

	deps := Deps{Source: store, Log: log, Workers: workers, BucketName: env.BucketName}
	t, err := tracker.New(env.TrackingURI)
	if err != nil {
		log.Warnf("experiment tracking disabled: %v", err)
	} else {
		defer t.Close()
		deps.Tracker = t
	}

	return New(cfg, deps).Run(ctx)
}
