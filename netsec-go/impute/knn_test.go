package impute

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/netsec-ml/netsec/netsec-golib/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = frame.Missing

func donors() frame.Matrix {
	return frame.Matrix{
		{1, 2},
		{2, nan},
		{3, 6},
		{10, 20},
	}
}

func TestUniform(t *testing.T) {
	k, err := NewKNNImputer(2, Uniform)
	require.NoError(t, err)
	require.NoError(t, k.Fit(donors()))

	out, err := k.Transform(frame.Matrix{{2.1, nan}, {nan, 19}})
	require.NoError(t, err)
	assert.Equal(t, 4., out[0][1])
	assert.Equal(t, 2.1, out[0][0])
	// nearest by second coordinate are rows 3 and 2
	assert.Equal(t, 6.5, out[1][0])
}

func TestDistanceWeights(t *testing.T) {
	k, err := NewKNNImputer(2, Distance)
	require.NoError(t, err)
	require.NoError(t, k.Fit(donors()))

	out, err := k.Transform(frame.Matrix{{1.5, nan}, {3, nan}})
	require.NoError(t, err)
	assert.InDelta(t, 3., out[0][1], 1e-12)
	assert.Equal(t, 6., out[1][1], "an exact match takes all the weight")
}

func TestFallbacks(t *testing.T) {
	k, err := NewKNNImputer(3, Uniform)
	require.NoError(t, err)
	require.NoError(t, k.Fit(frame.Matrix{{1, nan, 4}, {3, nan, 8}}))

	out, err := k.Transform(frame.Matrix{{nan, nan, nan}})
	require.NoError(t, err)
	// no shared coordinates: column means, and 0 for an all-missing column
	assert.Equal(t, []float64{2, 0, 6}, out[0])
}

func TestNoMissingAfterTransform(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := make(frame.Matrix, 50)
	for i := range x {
		x[i] = make([]float64, 6)
		for j := range x[i] {
			if rng.Float64() < 0.2 {
				x[i][j] = nan
			} else {
				x[i][j] = float64(rng.Intn(3) - 1)
			}
		}
	}
	for _, w := range []string{Uniform, Distance} {
		k, err := NewKNNImputer(3, w)
		require.NoError(t, err)
		out, err := k.FitTransform(x)
		require.NoError(t, err)
		assert.False(t, out.HasMissing(), w)
		assert.True(t, x.HasMissing(), "input is not modified")
	}
}

func TestTransformIgnoresOtherTestRows(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	random := func(n int) frame.Matrix {
		m := make(frame.Matrix, n)
		for i := range m {
			m[i] = []float64{rng.Float64(), rng.Float64(), rng.Float64()}
			m[i][rng.Intn(3)] = nan
		}
		return m
	}
	train, test := random(30), random(12)

	k, err := NewKNNImputer(3, Distance)
	require.NoError(t, err)
	require.NoError(t, k.Fit(train))
	a, err := k.Transform(test)
	require.NoError(t, err)

	perm := rng.Perm(len(test))
	shuffled := make(frame.Matrix, len(test))
	for i, p := range perm {
		shuffled[i] = test[p]
	}
	b, err := k.Transform(shuffled)
	require.NoError(t, err)
	for i, p := range perm {
		assert.Equal(t, a[p], b[i])
	}
}

func TestErrors(t *testing.T) {
	_, err := NewKNNImputer(0, Uniform)
	assert.Error(t, err)
	_, err = NewKNNImputer(3, "manhattan")
	assert.Error(t, err)

	k, err := NewKNNImputer(3, Uniform)
	require.NoError(t, err)
	_, err = k.Transform(frame.Matrix{{1}})
	assert.Error(t, err, "not fitted")
	require.NoError(t, k.Fit(donors()))
	_, err = k.Transform(frame.Matrix{{1, 2, 3}})
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	k, err := NewKNNImputer(2, Distance)
	require.NoError(t, err)
	require.NoError(t, k.Fit(donors()))

	path := filepath.Join(t.TempDir(), "preprocessing.bin")
	require.NoError(t, serialization.Encode(path, k))
	var decoded KNNImputer
	require.NoError(t, serialization.Decode(path, &decoded))

	x := frame.Matrix{{1.5, nan}, {nan, 7}}
	want, err := k.Transform(x)
	require.NoError(t, err)
	got, err := decoded.Transform(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 2, decoded.Features())
}
