package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	arg "github.com/alexflint/go-arg"
	"github.com/netsec-ml/netsec/netsec-go/pipeline"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-golib/envutil"
)

func fail(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	args := struct {
		Env         string  `help:"dotenv file loaded before reading the environment"`
		ArtifactDir string  `help:"root directory for run artifacts"`
		FinalModel  string  `help:"directory receiving the final model pair"`
		Schema      string  `help:"column schema yaml"`
		ModelParams string  `help:"model parameter grid yaml"`
		SplitRatio  float64 `help:"fraction of rows held out for testing"`
		Seed        int64   `help:"seed for the split and model randomness"`
		Workers     int     `help:"parallel grid search fits"`
		TrackingURI string  `help:"overrides MLFLOW_TRACKING_URI"`
		BucketName  string  `help:"overrides TRAINING_BUCKET_NAME"`
	}{
		Env:     ".env",
		Workers: runtime.NumCPU(),
	}
	c := config.DefaultConstants()
	args.ArtifactDir = c.ArtifactDir
	args.FinalModel = c.FinalModelDir
	args.Schema = c.SchemaFilePath
	args.ModelParams = c.ModelParamsFilePath
	args.SplitRatio = c.TrainTestSplitRatio
	args.Seed = c.Seed
	arg.MustParse(&args)

	if loaded := envutil.LoadDotEnv(args.Env); loaded != "" {
		log.Printf("loaded environment from %s", loaded)
	}
	c.ArtifactDir = args.ArtifactDir
	c.FinalModelDir = args.FinalModel
	c.SchemaFilePath = args.Schema
	c.ModelParamsFilePath = args.ModelParams
	c.TrainTestSplitRatio = args.SplitRatio
	c.Seed = args.Seed

	env := pipeline.EnvFromOS()
	if args.TrackingURI != "" {
		env.TrackingURI = args.TrackingURI
	}
	if args.BucketName != "" {
		env.BucketName = args.BucketName
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Println("interrupted, stopping after the current stage")
		cancel()
	}()

	res, err := pipeline.Train(ctx, c, env, nil, args.Workers)
	fail(err)
	if res.SyncErr != nil {
		log.Printf("artifact sync failed: %v", res.SyncErr)
	}

	tr := res.Trainer
	log.Printf("run %s complete: best model %s (score %.4f)", res.RunID, tr.BestModel, tr.BestScore)
	log.Printf("train metric: f1 %.4f precision %.4f recall %.4f", tr.TrainMetric.F1, tr.TrainMetric.Precision, tr.TrainMetric.Recall)
	log.Printf("test metric: f1 %.4f precision %.4f recall %.4f", tr.TestMetric.F1, tr.TestMetric.Precision, tr.TestMetric.Recall)
	log.Printf("model bundle: %s", tr.ModelPath)
}
