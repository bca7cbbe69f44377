package main

import (
	"context"
	"net/http"
	"path/filepath"
	"runtime"

	arg "github.com/alexflint/go-arg"
	"github.com/netsec-ml/netsec/netsec-go/pipeline"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-go/serve"
	"github.com/netsec-ml/netsec/netsec-golib/envutil"
	"github.com/netsec-ml/netsec/netsec-golib/pipelog"
	"go.uber.org/zap"
)

func main() {
	args := struct {
		Port    string `help:"address to listen on"`
		Env     string `help:"dotenv file loaded before reading the environment"`
		Output  string `help:"csv file receiving the latest predictions"`
		Workers int    `help:"parallel grid search fits for /train"`
	}{
		Port:    ":8080",
		Env:     ".env",
		Output:  "prediction_output/output.csv",
		Workers: runtime.NumCPU(),
	}
	arg.MustParse(&args)

	logger := pipelog.NewZap()
	defer logger.Sync()

	if loaded := envutil.LoadDotEnv(args.Env); loaded != "" {
		logger.Info("loaded environment", zap.String("path", loaded))
	}

	c := config.DefaultConstants()
	schema, err := config.LoadSchema(c.SchemaFilePath)
	if err != nil {
		logger.Fatal("loading schema", zap.Error(err))
	}

	train := func(ctx context.Context) error {
		res, err := pipeline.Train(ctx, c, pipeline.EnvFromOS(), pipelog.ZapWriter{Logger: logger.Sugar()}, args.Workers)
		if err != nil {
			return err
		}
		logger.Info("training run complete",
			zap.String("run", res.RunID),
			zap.String("model", res.Trainer.BestModel),
			zap.Float64("score", res.Trainer.BestScore))
		return nil
	}

	srv, err := serve.NewServer(serve.Options{
		ModelPath:        filepath.Join(c.FinalModelDir, c.TrainedModelFileName),
		PreprocessorPath: filepath.Join(c.FinalModelDir, c.PreprocessorFileName),
		OutputPath:       args.Output,
		Schema:           schema,
		TargetColumn:     c.TargetColumn,
		Train:            train,
		Log:              logger,
	})
	if err != nil {
		logger.Fatal("creating server", zap.Error(err))
	}

	logger.Info("listening", zap.String("addr", args.Port))
	if err := http.ListenAndServe(args.Port, srv.Handler()); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
