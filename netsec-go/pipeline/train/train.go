// Package train searches the classifier catalog, picks the best family and persists the
// fitted model with its preprocessor.
package train

import (
	"context"
	"math"

	humanize "github.com/dustin/go-humanize"
	"github.com/netsec-ml/netsec/netsec-go/bundle"
	"github.com/netsec-ml/netsec/netsec-go/classifier"
	"github.com/netsec-ml/netsec/netsec-go/impute"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/transform"
	"github.com/netsec-ml/netsec/netsec-go/tracker"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/netsec-ml/netsec/netsec-golib/pipelog"
	"github.com/netsec-ml/netsec/netsec-golib/serialization"
)

// Artifact is produced by ModelTrainer.
type Artifact struct {
	ModelPath      string
	FinalModelPath string
	TrainMetric    classifier.Metric
	TestMetric     classifier.Metric

	BestModel  string
	BestParams classifier.Params
	BestScore  float64
	// Scores holds the test score of every family that could be fit
	Scores map[string]float64
	// Failures holds the families that could not be fit
	Failures map[string]string

	// FitQualityBreach is set when train and test F1 differ by more than the configured threshold
	FitQualityBreach bool
	// BelowExpected is set when BestScore is under the expected score
	BelowExpected bool
	// TrackerErr records tracking failures; they never fail the stage
	TrackerErr error
	Tracked    []tracker.Result
}

// ModelTrainer runs the training stage.
type ModelTrainer struct {
	cfg     config.ModelTrainerConfig
	in      transform.Artifact
	tracker tracker.Tracker
	runID   string
	workers int
	log     *pipelog.Logger
}

// New creates a ModelTrainer. A nil tracker disables experiment tracking.
func New(cfg config.ModelTrainerConfig, in transform.Artifact, t tracker.Tracker, runID string, workers int, log *pipelog.Logger) *ModelTrainer {
	return &ModelTrainer{cfg: cfg, in: in, tracker: t, runID: runID, workers: workers, log: log}
}

// Run trains the catalog on the transformed matrices and persists the winner.
func (m *ModelTrainer) Run(ctx context.Context) (Artifact, error) {
	xTrain, yTrain, err := m.loadMatrix(m.in.TransformedTrainFilePath, "train")
	if err != nil {
		return Artifact{}, err
	}
	xTest, yTest, err := m.loadMatrix(m.in.TransformedTestFilePath, "test")
	if err != nil {
		return Artifact{}, err
	}
	pre, err := m.loadPreprocessor()
	if err != nil {
		return Artifact{}, err
	}

	params, err := config.LoadModelParams(m.cfg.ModelParamsFilePath)
	if err != nil {
		return Artifact{}, err
	}
	grids := make(map[string]classifier.Grid, len(params.Grids))
	for name, g := range params.Grids {
		grids[name] = classifier.Grid(g)
	}

	m.log.Printf("training %d model families with %d-fold cv, scoring=%s", len(classifier.Catalog), params.CV, params.Scoring)
	reports, err := classifier.EvaluateModels(ctx, classifier.Catalog, grids, xTrain, yTrain, xTest, yTest, classifier.EvaluateOptions{
		Scoring: params.Scoring,
		SearchOptions: classifier.SearchOptions{
			Folds:   params.CV,
			Seed:    m.cfg.Seed,
			Workers: m.workers,
		},
	})
	if err != nil {
		return Artifact{}, errors.E(errors.TrainingError, err, "evaluating models")
	}

	art := Artifact{
		Scores:   classifier.Scores(reports),
		Failures: make(map[string]string),
	}
	for _, r := range reports {
		if r.Err != nil {
			art.Failures[r.Name] = r.Err.Error()
			m.log.Warnf("%s could not be fit: %v", r.Name, r.Err)
			continue
		}
		m.log.Printf("%s: cv accuracy %.4f, test %s %.4f, params %s", r.Name, r.CVScore, params.Scoring, r.TestScore, r.Params.Key())
	}

	best, err := classifier.SelectBest(reports)
	if err != nil {
		return Artifact{}, errors.E(errors.TrainingError, err, "selecting best model")
	}
	art.BestModel, art.BestParams, art.BestScore = best.Name, best.Params, best.TestScore
	m.log.Printf("best model: %s, score %.4f", best.Name, best.TestScore)

	if art.TrainMetric, err = metric(best.Model, xTrain, yTrain); err != nil {
		return Artifact{}, errors.E(errors.TrainingError, err, "scoring train partition")
	}
	if art.TestMetric, err = metric(best.Model, xTest, yTest); err != nil {
		return Artifact{}, errors.E(errors.TrainingError, err, "scoring test partition")
	}

	if breach, gap := CheckFitQuality(art.TrainMetric, art.TestMetric, m.cfg.FitQualityThreshold); breach {
		art.FitQualityBreach = true
		m.log.Warnf("train/test f1 gap %.4f exceeds %.4f", gap, m.cfg.FitQualityThreshold)
	}
	if art.BestScore < m.cfg.ExpectedScore {
		art.BelowExpected = true
		m.log.Warnf("best score %.4f is below the expected %.4f", art.BestScore, m.cfg.ExpectedScore)
	}

	if err := m.persist(pre, best.Model); err != nil {
		return Artifact{}, err
	}
	art.ModelPath = m.cfg.TrainedModelFilePath
	art.FinalModelPath = m.cfg.FinalModelFilePath

	for _, s := range []struct {
		stage  string
		metric classifier.Metric
	}{
		{"train", art.TrainMetric},
		{"test", art.TestMetric},
	} {
		res, err := m.track(ctx, best, s.stage, s.metric)
		if err != nil {
			m.log.Warnf("tracking %s metrics failed: %v", s.stage, err)
			art.TrackerErr = errors.Append(art.TrackerErr, err)
			continue
		}
		if res != nil {
			art.Tracked = append(art.Tracked, *res)
		}
	}

	m.log.Printf("train metric %+v, test metric %+v", art.TrainMetric, art.TestMetric)
	return art, nil
}

func (m *ModelTrainer) loadMatrix(path, name string) (frame.Matrix, []float64, error) {
	if path == "" || !fileutil.Exists(path) {
		return nil, nil, errors.E(errors.TrainingError, nil, "transformed %s matrix %q not found", name, path)
	}
	var mat frame.Matrix
	if err := serialization.Decode(path, &mat); err != nil {
		return nil, nil, errors.E(errors.TrainingError, err, "reading transformed %s matrix", name)
	}
	x, y, err := mat.SplitLabel()
	if err != nil {
		return nil, nil, errors.E(errors.TrainingError, err, "splitting %s labels", name)
	}
	if len(x) == 0 {
		return nil, nil, errors.E(errors.TrainingError, nil, "transformed %s matrix is empty", name)
	}
	return x, y, nil
}

func (m *ModelTrainer) loadPreprocessor() (*impute.KNNImputer, error) {
	path := m.in.TransformedObjectFilePath
	if path == "" || !fileutil.Exists(path) {
		return nil, errors.E(errors.TrainingError, nil, "transform object %q not found", path)
	}
	var pre impute.KNNImputer
	if err := serialization.Decode(path, &pre); err != nil {
		return nil, errors.E(errors.TrainingError, err, "reading transform object")
	}
	return &pre, nil
}

// persist writes the run scoped bundle and the final model pair.
func (m *ModelTrainer) persist(pre *impute.KNNImputer, model classifier.Classifier) error {
	if err := bundle.Save(m.cfg.TrainedModelFilePath, bundle.New(pre, model)); err != nil {
		return errors.E(errors.TrainingError, err, "saving trained model")
	}
	if err := bundle.SaveModel(m.cfg.FinalModelFilePath, model); err != nil {
		return errors.E(errors.TrainingError, err, "saving final model")
	}
	if err := bundle.SavePreprocessor(m.cfg.FinalPreprocessorPath, pre); err != nil {
		return errors.E(errors.TrainingError, err, "saving final preprocessor")
	}
	for _, p := range []string{m.cfg.TrainedModelFilePath, m.cfg.FinalModelFilePath, m.cfg.FinalPreprocessorPath} {
		m.log.Printf("wrote %s (%s)", p, humanize.Bytes(fileutil.Size(p)))
	}
	return nil
}

func (m *ModelTrainer) track(ctx context.Context, best classifier.Report, stage string, metric classifier.Metric) (*tracker.Result, error) {
	if m.tracker == nil {
		return nil, nil
	}
	res, err := m.tracker.LogRun(ctx, tracker.Run{
		Experiment:    tracker.DefaultExperiment,
		PipelineRunID: m.runID,
		ModelName:     best.Name,
		Stage:         stage,
		Params:        best.Params,
		Metric:        metric,
		ModelPath:     m.cfg.FinalModelFilePath,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckFitQuality reports whether the absolute train/test f1 gap exceeds threshold, and the gap.
func CheckFitQuality(train, test classifier.Metric, threshold float64) (bool, float64) {
	gap := math.Abs(train.F1 - test.F1)
	return gap > threshold, gap
}

func metric(c classifier.Classifier, x frame.Matrix, y []float64) (classifier.Metric, error) {
	pred, err := c.Predict(x)
	if err != nil {
		return classifier.Metric{}, err
	}
	return classifier.Score(y, pred)
}
