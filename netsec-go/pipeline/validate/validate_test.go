package validate

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/ingest"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/netsec-ml/netsec/netsec-golib/pipelog"
	"github.com/netsec-ml/netsec/netsec-golib/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *config.Schema {
	s, err := config.ParseSchema([]byte(`
columns:
  - a: int64
  - b: float64
  - Result: int64
allowed_values:
  Result: [-1, 1]
`))
	require.NoError(t, err)
	return s
}

func sample(n int, shift float64, rng *rand.Rand) *frame.Frame {
	f := frame.New("a", "b", "Result")
	for i := 0; i < n; i++ {
		f.Append([]float64{float64(rng.Intn(3) - 1), rng.NormFloat64() + shift, float64(2*rng.Intn(2) - 1)})
	}
	return f
}

func TestCheckSchema(t *testing.T) {
	s := testSchema(t)
	f := sample(20, 0, rand.New(rand.NewSource(1)))
	r := CheckSchema(f, s)
	assert.True(t, r.Status, "%+v", r)

	// row order never changes the outcome
	shuffled := f.Subset(rand.New(rand.NewSource(2)).Perm(f.Len()))
	assert.Equal(t, r, CheckSchema(shuffled, s))

	renamed := frame.New("a", "B", "Result")
	renamed.Rows = f.Rows
	r = CheckSchema(renamed, s)
	assert.False(t, r.Status)
	assert.Equal(t, []string{"b"}, r.MissingColumns)
	assert.Equal(t, []string{"B"}, r.UnexpectedColumns)

	dropped := frame.New("a", "Result")
	for _, row := range f.Rows {
		dropped.Append([]float64{row[0], row[2]})
	}
	assert.False(t, CheckSchema(dropped, s).Status)

	extra := frame.New("a", "b", "Result", "c")
	for _, row := range f.Rows {
		extra.Append(append(append([]float64{}, row...), 0))
	}
	assert.False(t, CheckSchema(extra, s).Status)
}

func TestCheckSchemaValues(t *testing.T) {
	s := testSchema(t)
	f := frame.New("a", "b", "Result")
	f.Append([]float64{0.5, 1, 1})
	f.Append([]float64{frame.Missing, 1, 0})
	r := CheckSchema(f, s)
	assert.False(t, r.Status)
	assert.Len(t, r.Violations, 2)
}

func TestDetectDrift(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	base := sample(400, 0, rng)
	same := DetectDrift(base, base.Subset(rng.Perm(base.Len())), 0.05)
	require.Len(t, same.Columns, 3)
	assert.False(t, same.DriftDetected)
	for _, c := range same.Columns {
		assert.Equal(t, 0., c.Statistic)
		assert.Equal(t, 1., c.PValue)
	}

	shifted := DetectDrift(sample(400, 0, rng), sample(400, 2, rng), 0.05)
	assert.True(t, shifted.DriftDetected)
	assert.Equal(t, "b", shifted.Columns[1].Column)
	assert.True(t, shifted.Columns[1].Drift)
	assert.True(t, shifted.Columns[1].PValue < 1e-6)
	assert.InDelta(t, 2, shifted.Columns[1].Test.Mean-shifted.Columns[1].Train.Mean, 0.3)
}

func TestKolmogorovQ(t *testing.T) {
	assert.Equal(t, 1., kolmogorovQ(0))
	assert.InDelta(t, 0.27, kolmogorovQ(1), 0.01)
	assert.InDelta(t, 0.0, kolmogorovQ(3), 1e-6)
}

func setup(t *testing.T, train, test *frame.Frame) (config.DataValidationConfig, ingest.Artifact) {
	c := config.DefaultConstants()
	c.ArtifactDir = filepath.Join(t.TempDir(), "Artifacts")
	r := config.NewRunConfig(c, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	in := r.DataIngestion()
	require.NoError(t, train.SaveCSV(in.TrainFilePath))
	require.NoError(t, test.SaveCSV(in.TestFilePath))
	return r.DataValidation(), ingest.Artifact{TrainFilePath: in.TrainFilePath, TestFilePath: in.TestFilePath}
}

func TestRunValid(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	cfg, in := setup(t, sample(80, 0, rng), sample(20, 0, rng))
	art, err := New(cfg, testSchema(t), in, "run", pipelog.Discard()).Run()
	require.NoError(t, err)

	assert.True(t, art.ValidationStatus)
	assert.Equal(t, cfg.ValidTrainFilePath, art.ValidTrainFilePath)
	assert.Equal(t, cfg.ValidTestFilePath, art.ValidTestFilePath)
	assert.Empty(t, art.InvalidTrainFilePath)
	assert.True(t, fileutil.Exists(art.ValidTrainFilePath))
	assert.False(t, fileutil.Exists(cfg.InvalidTrainFilePath))

	var report Report
	require.NoError(t, serialization.Decode(art.DriftReportFilePath, &report))
	assert.Equal(t, "run", report.RunID)
	assert.Len(t, report.Drift.Columns, 3)
	assert.True(t, report.TrainSchema.Status)
}

func TestRunSchemaMismatchIsRecorded(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	test := frame.New("a", "Result")
	for i := 0; i < 10; i++ {
		test.Append([]float64{0, 1})
	}
	cfg, in := setup(t, sample(40, 0, rng), test)
	art, err := New(cfg, testSchema(t), in, "run", pipelog.Discard()).Run()
	require.NoError(t, err)

	assert.False(t, art.ValidationStatus)
	assert.True(t, art.TrainSchema.Status)
	assert.False(t, art.TestSchema.Status)
	assert.Equal(t, cfg.ValidTrainFilePath, art.ValidTrainFilePath)
	assert.Empty(t, art.ValidTestFilePath)
	assert.Equal(t, cfg.InvalidTestFilePath, art.InvalidTestFilePath)
	assert.True(t, fileutil.Exists(art.InvalidTestFilePath))
	assert.True(t, fileutil.Exists(art.DriftReportFilePath))
}

func TestRunUnreadable(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	cfg, in := setup(t, sample(10, 0, rng), sample(10, 0, rng))
	require.NoError(t, fileutil.WriteFile(in.TestFilePath, []byte("a,b,Result\nx,1,1\n")))
	_, err := New(cfg, testSchema(t), in, "run", pipelog.Discard()).Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ValidationError))
}

func TestRunWritesSchemaOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	shuffled := func(f *frame.Frame) *frame.Frame {
		out, err := f.Select("b", "Result", "a")
		require.NoError(t, err)
		return out
	}
	train := sample(40, 0, rng)
	cfg, in := setup(t, shuffled(train), shuffled(sample(10, 0, rng)))
	art, err := New(cfg, testSchema(t), in, "run", pipelog.Discard()).Run()
	require.NoError(t, err)
	require.True(t, art.ValidationStatus)

	valid, err := frame.LoadCSV(art.ValidTrainFilePath, frame.DefaultMissingTokens)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "Result"}, valid.Columns)
	assert.Equal(t, train.Rows, valid.Rows)
}
