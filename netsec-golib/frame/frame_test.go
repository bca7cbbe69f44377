package frame

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/netsec-ml/netsec/netsec-golib/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequential(n int) *Frame {
	f := New("id", "Result")
	for i := 0; i < n; i++ {
		f.Append([]float64{float64(i), float64(i % 2)})
	}
	return f
}

func TestSplitPartitions(t *testing.T) {
	for _, n := range []int{1, 2, 5, 10, 99, 100, 101} {
		for _, ratio := range []float64{0.1, 0.2, 0.25, 0.5} {
			f := sequential(n)
			train, test, err := f.Split(ratio, rand.New(rand.NewSource(42)))
			if n == 1 {
				// ceil(ratio) == 1 leaves nothing to train on
				require.Error(t, err)
				continue
			}
			require.NoError(t, err)

			require.Equal(t, n, train.Len()+test.Len())
			assert.InDelta(t, ratio*float64(n), float64(test.Len()), 1.0, "n=%d ratio=%v", n, ratio)

			var ids []int
			for _, part := range []*Frame{train, test} {
				for _, row := range part.Rows {
					ids = append(ids, int(row[0]))
				}
			}
			sort.Ints(ids)
			for i := range ids {
				require.Equal(t, i, ids[i], "row lost or duplicated")
			}
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	f := sequential(50)
	a, _, err := f.Split(0.2, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, _, err := f.Split(0.2, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, a.Rows, b.Rows)

	_, _, err = f.Split(0, rand.New(rand.NewSource(7)))
	assert.Error(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	in := "a,b,Result\n1,na,-1\n,0.5,1\n"
	f, err := ReadCSV(strings.NewReader(in), DefaultMissingTokens)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "Result"}, f.Columns)
	require.Equal(t, 2, f.Len())
	assert.True(t, IsMissing(f.Rows[0][1]))
	assert.True(t, IsMissing(f.Rows[1][0]))

	var buf bytes.Buffer
	require.NoError(t, f.WriteCSV(&buf))
	assert.Equal(t, "a,b,Result\n1,,-1\n,0.5,1\n", buf.String())

	path := filepath.Join(t.TempDir(), "ingested", "train.csv")
	require.NoError(t, f.SaveCSV(path))
	g, err := LoadCSV(path, nil)
	require.NoError(t, err)
	assert.Equal(t, f.Columns, g.Columns)
	assert.Equal(t, buf.String(), func() string {
		var b bytes.Buffer
		g.WriteCSV(&b)
		return b.String()
	}())
}

func TestCSVRejectsText(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,abc\n"), DefaultMissingTokens)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column b")

	_, err = ReadCSV(strings.NewReader(""), nil)
	assert.Error(t, err)
}

func TestXYAndLabels(t *testing.T) {
	f := New("a", "Result", "b")
	f.Append([]float64{1, 0, 2})
	f.Append([]float64{3, 1, 4})

	x, y, names, err := f.XY("Result")
	require.NoError(t, err)
	assert.Equal(t, Matrix{{1, 2}, {3, 4}}, x)
	assert.Equal(t, []float64{0, 1}, y)
	assert.Equal(t, []string{"a", "b"}, names)

	m, err := x.AppendLabel(y)
	require.NoError(t, err)
	assert.Equal(t, Matrix{{1, 2, 0}, {3, 4, 1}}, m)
	assert.Equal(t, Matrix{{1, 2}, {3, 4}}, x, "AppendLabel must not alias its input")

	x2, y2, err := m.SplitLabel()
	require.NoError(t, err)
	assert.Equal(t, x, x2)
	assert.Equal(t, y, y2)

	_, _, _, err = f.XY("missing")
	assert.Error(t, err)
}

func TestMatrixBinary(t *testing.T) {
	m := Matrix{{1, Missing, 3}, {4, 5, 6}}
	assert.True(t, m.HasMissing())

	path := filepath.Join(t.TempDir(), "transformed", "train.bin")
	require.NoError(t, serialization.Encode(path, m))

	var out Matrix
	require.NoError(t, serialization.Decode(path, &out))
	require.Len(t, out, 2)
	assert.True(t, IsMissing(out[0][1]))
	assert.Equal(t, []float64{4, 5, 6}, out[1])
	r, c := out.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
}

func TestSelect(t *testing.T) {
	f := New("a", "b", "c")
	require.NoError(t, f.Append([]float64{1, 2, 3}))

	out, err := f.Select("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, out.Columns)
	assert.Equal(t, [][]float64{{3, 1}}, out.Rows)

	out.Rows[0][0] = 9
	assert.Equal(t, 3.0, f.Rows[0][2])

	_, err = f.Select("a", "z")
	assert.Error(t, err)
}
