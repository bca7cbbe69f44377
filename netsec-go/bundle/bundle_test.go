package bundle

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/netsec-ml/netsec/netsec-go/classifier"
	"github.com/netsec-ml/netsec/netsec-go/impute"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/netsec-ml/netsec/netsec-golib/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"
)

func data(n int, seed int64) (frame.Matrix, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make(frame.Matrix, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = []float64{float64(rng.Intn(3) - 1), float64(rng.Intn(3) - 1), float64(rng.Intn(3) - 1)}
		if x[i][0]+x[i][1] > 0 {
			y[i] = 1
		}
		if rng.Float64() < 0.1 {
			x[i][rng.Intn(3)] = frame.Missing
		}
	}
	return x, y
}

func fitted(t *testing.T, family string) *Bundle {
	x, y := data(120, 1)
	pre, err := impute.NewKNNImputer(3, impute.Uniform)
	require.NoError(t, err)
	xt, err := pre.FitTransform(x)
	require.NoError(t, err)

	fam, ok := classifier.Lookup(family)
	require.True(t, ok)
	model, err := fam.New(classifier.Params{}, 3)
	require.NoError(t, err)
	require.NoError(t, model.Fit(xt, y))
	return New(pre, model)
}

func TestRoundTrip(t *testing.T) {
	x, _ := data(50, 2)
	for _, fam := range classifier.Catalog {
		b := fitted(t, fam.Name)
		path := filepath.Join(t.TempDir(), "model.bin")
		require.NoError(t, Save(path, b))

		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, fam.Kind, loaded.Model.Kind())

		want, err := b.Predict(x)
		require.NoError(t, err)
		got, err := loaded.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, want, got, fam.Name)
	}
}

func TestLoadPair(t *testing.T) {
	b := fitted(t, "Logistic Regression")
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "final_model", "model.bin")
	prePath := filepath.Join(dir, "final_model", "preprocessor.bin")
	require.NoError(t, SaveModel(modelPath, b.Model))
	require.NoError(t, SavePreprocessor(prePath, b.Preprocessor))

	pair, err := LoadPair(modelPath, prePath)
	require.NoError(t, err)

	x, _ := data(40, 3)
	want, err := b.Predict(x)
	require.NoError(t, err)
	got, err := pair.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = LoadPair(prePath, modelPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.PredictionError))
}

// rawMap writes a msgp map of string keys to int values.
type rawMap map[string]interface{}

func (m rawMap) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(uint32(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := w.WriteString(k); err != nil {
			return err
		}
		if err := w.WriteIntf(v); err != nil {
			return err
		}
	}
	return nil
}

func TestLoadRejects(t *testing.T) {
	dir := t.TempDir()
	for name, m := range map[string]rawMap{
		"future version": {"version": 99},
		"no version":     {"other": 1},
		"incomplete":     {"version": Version},
	} {
		path := filepath.Join(dir, "bad.bin")
		require.NoError(t, serialization.Encode(path, m))
		_, err := Load(path)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, errors.PredictionError), name)
	}

	_, err := Load(filepath.Join(dir, "missing.bin"))
	assert.True(t, errors.Is(err, errors.PredictionError))
}

func TestPredictIncomplete(t *testing.T) {
	_, err := (&Bundle{}).Predict(frame.Matrix{{1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.PredictionError))

	b := fitted(t, "Decision Tree")
	_, err = b.Predict(frame.Matrix{{1, 2}})
	assert.True(t, errors.Is(err, errors.PredictionError))
}
