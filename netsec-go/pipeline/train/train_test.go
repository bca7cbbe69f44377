package train

import (
	"context"
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallParams = `
scoring: f1
cv: 2
models:
  Random Forest: {n_estimators: [4], max_depth: [3]}
  Decision Tree: {max_depth: [2, 3]}
  Gradient Boosting: {n_estimators: [8]}
  Logistic Regression: {C: [1.0]}
  AdaBoost: {n_estimators: [8]}
`

func testConfig(t *testing.T, params string) config.ModelTrainerConfig {
	dir := t.TempDir()
	c := config.DefaultConstants()
	c.ArtifactDir = filepath.Join(dir, "Artifacts")
	c.FinalModelDir = filepath.Join(dir, "final_model")
	c.ModelParamsFilePath = filepath.Join(dir, "model_params.yaml")
	require.NoError(t, ioutil.WriteFile(c.ModelParamsFilePath, []byte(params), 0644))
	return config.NewRunConfig(c, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)).ModelTrainer()
}

// labelled rows of three ternary features; the label is 1 when the first two sum above zero
func matrix(n int, rng *rand.Rand) frame.Matrix {
	m := make(frame.Matrix, n)
	for i := range m {
		a, b, c := float64(rng.Intn(3)-1), float64(rng.Intn(3)-1), float64(rng.Intn(3)-1)
		var y float64
		if a+b > 0 {
			y = 1
		}
		m[i] = []float64{a, b, c, y}
	}
	return m
}

func transformed(t *testing.T) transform.Artifact {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(7))
	train, test := matrix(80, rng), matrix(20, rng)
	x, _, err := train.SplitLabel()
	require.NoError(t, err)
	imp, err := impute.NewKNNImputer(3, impute.Uniform)
	require.NoError(t, err)
	require.NoError(t, imp.Fit(x))

	art := transform.Artifact{
		TransformedTrainFilePath:  filepath.Join(dir, "train.bin"),
		TransformedTestFilePath:   filepath.Join(dir, "test.bin"),
		TransformedObjectFilePath: filepath.Join(dir, "preprocessing.bin"),
		Features:                  []string{"a", "b", "c"},
	}
	require.NoError(t, serialization.Encode(art.TransformedTrainFilePath, train))
	require.NoError(t, serialization.Encode(art.TransformedTestFilePath, test))
	require.NoError(t, serialization.Encode(art.TransformedObjectFilePath, imp))
	return art
}

func TestRun(t *testing.T) {
	cfg := testConfig(t, smallParams)
	mock := tracker.NewMockTracker()
	art, err := New(cfg, transformed(t), mock, "run", 2, pipelog.Discard()).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, art.Scores, 5)
	assert.Empty(t, art.Failures)
	assert.Contains(t, art.Scores, art.BestModel)
	for _, s := range art.Scores {
		assert.True(t, s <= art.BestScore)
	}
	assert.True(t, art.BestScore > 0.8, "best score %v", art.BestScore)
	assert.False(t, art.BelowExpected)
	assert.NoError(t, art.TrackerErr)

	assert.Equal(t, cfg.TrainedModelFilePath, art.ModelPath)
	for _, p := range []string{cfg.TrainedModelFilePath, cfg.FinalModelFilePath, cfg.FinalPreprocessorPath} {
		assert.True(t, fileutil.Exists(p), p)
	}

	runs := mock.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, "train", runs[0].Stage)
	assert.Equal(t, "test", runs[1].Stage)
	assert.Equal(t, art.TrainMetric, runs[0].Metric)
	assert.Equal(t, art.TestMetric, runs[1].Metric)
	assert.Equal(t, art.BestModel, runs[1].ModelName)
	assert.Equal(t, "run", runs[1].PipelineRunID)
	assert.Len(t, art.Tracked, 2)

	// both persisted forms predict the same labels
	b, err := bundle.Load(cfg.TrainedModelFilePath)
	require.NoError(t, err)
	pair, err := bundle.LoadPair(cfg.FinalModelFilePath, cfg.FinalPreprocessorPath)
	require.NoError(t, err)
	x := frame.Matrix{{1, 1, 0}, {-1, -1, 0}, {1, frame.Missing, 1}}
	p1, err := b.Predict(x)
	require.NoError(t, err)
	p2, err := pair.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, 1.0, p1[0])
	assert.Equal(t, 0.0, p1[1])
}

func TestRunIsReproducible(t *testing.T) {
	in := transformed(t)
	first, err := New(testConfig(t, smallParams), in, nil, "a", 1, pipelog.Discard()).Run(context.Background())
	require.NoError(t, err)
	second, err := New(testConfig(t, smallParams), in, nil, "b", 4, pipelog.Discard()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.BestModel, second.BestModel)
	assert.Equal(t, first.Scores, second.Scores)
	assert.Equal(t, first.TrainMetric, second.TrainMetric)
	assert.Equal(t, first.TestMetric, second.TestMetric)
}

func TestTrackerFailureIsRecorded(t *testing.T) {
	mock := tracker.NewMockTracker()
	mock.Err = errors.E(errors.TrackingError, nil, "tracking server down")
	art, err := New(testConfig(t, smallParams), transformed(t), mock, "run", 2, pipelog.Discard()).Run(context.Background())
	require.NoError(t, err)
	require.Error(t, art.TrackerErr)
	assert.Len(t, art.TrackerErr.(errors.List), 2)
	assert.Empty(t, art.Tracked)
	assert.True(t, fileutil.Exists(art.FinalModelPath))
}

func TestExpectedScoreAndFitQuality(t *testing.T) {
	cfg := testConfig(t, smallParams)
	cfg.ExpectedScore = 1.5
	cfg.FitQualityThreshold = -1
	art, err := New(cfg, transformed(t), nil, "run", 2, pipelog.Discard()).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, art.BelowExpected)
	assert.True(t, art.FitQualityBreach)
}

func TestRunFailures(t *testing.T) {
	_, err := New(testConfig(t, smallParams), transform.Artifact{}, nil, "run", 1, pipelog.Discard()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.TrainingError))

	in := transformed(t)
	in.TransformedObjectFilePath = filepath.Join(t.TempDir(), "absent.bin")
	_, err = New(testConfig(t, smallParams), in, nil, "run", 1, pipelog.Discard()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.TrainingError))

	// a family whose every candidate is invalid is reported, not fatal
	art, err := New(testConfig(t, `
models:
  Decision Tree: {criterion: [bogus]}
`), transformed(t), nil, "run", 1, pipelog.Discard()).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, art.Failures, "Decision Tree")
	assert.Len(t, art.Scores, 4)

	_, err = New(testConfig(t, `
models:
  Random Forest: {n_estimators: [0]}
  Decision Tree: {criterion: [bogus]}
  Gradient Boosting: {learning_rate: [-1]}
  Logistic Regression: {C: [-1]}
  AdaBoost: {n_estimators: [0]}
`), transformed(t), nil, "run", 1, pipelog.Discard()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.TrainingError))

	_, err = New(testConfig(t, "cv: 1\n"), transformed(t), nil, "run", 1, pipelog.Discard()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ConfigError))
}

func TestCheckFitQuality(t *testing.T) {
	for _, tc := range []struct {
		train, test float64
		breach      bool
	}{
		{0.95, 0.93, false},
		{0.99, 0.90, true},
		{0.80, 0.90, true},
		{0.90, 0.90, false},
	} {
		breach, gap := CheckFitQuality(classifier.Metric{F1: tc.train}, classifier.Metric{F1: tc.test}, 0.05)
		assert.Equal(t, tc.breach, breach, "train %v test %v", tc.train, tc.test)
		assert.InDelta(t, tc.train-tc.test, gap*sign(tc.train-tc.test), 1e-12)
	}
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
