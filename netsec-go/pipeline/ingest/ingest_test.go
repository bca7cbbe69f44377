package ingest

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/netsec-ml/netsec/netsec-golib/pipelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeSource struct {
	docs []bson.D
	err  error
}

func (f fakeSource) Export(ctx context.Context, database, collection string) ([]bson.D, error) {
	return f.docs, f.err
}

func testConfig(t *testing.T) config.DataIngestionConfig {
	c := config.DefaultConstants()
	c.ArtifactDir = filepath.Join(t.TempDir(), "Artifacts")
	return config.NewRunConfig(c, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)).DataIngestion()
}

func records(n int) []bson.D {
	var docs []bson.D
	for i := 0; i < n; i++ {
		docs = append(docs, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "id", Value: int32(i)},
			{Key: "having_IP_Address", Value: int64(i%3 - 1)},
			{Key: "Result", Value: int32(2*(i%2) - 1)},
		})
	}
	return docs
}

func TestFromDocuments(t *testing.T) {
	docs := []bson.D{
		{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "a", Value: int32(1)}, {Key: "b", Value: "na"}},
		{{Key: "b", Value: 2.5}, {Key: "a", Value: nil}, {Key: "c", Value: "3"}},
	}
	f, err := FromDocuments(docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, f.Columns)
	require.Equal(t, 2, f.Len())

	assert.Equal(t, 1., f.Rows[0][0])
	assert.True(t, math.IsNaN(f.Rows[0][1]))
	assert.True(t, math.IsNaN(f.Rows[0][2]), "absent field is missing")
	assert.True(t, math.IsNaN(f.Rows[1][0]))
	assert.Equal(t, 2.5, f.Rows[1][1])
	assert.Equal(t, 3., f.Rows[1][2])
}

func TestFromDocumentsMalformed(t *testing.T) {
	_, err := FromDocuments([]bson.D{{{Key: "a", Value: "phishing"}}})
	assert.Error(t, err)
	_, err = FromDocuments([]bson.D{{{Key: "_id", Value: primitive.NewObjectID()}}})
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg, fakeSource{docs: records(101)}, pipelog.Discard())
	art, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 101, art.Rows)
	assert.Equal(t, 101, art.TrainRows+art.TestRows)
	assert.Equal(t, 21, art.TestRows)
	assert.Len(t, art.Fingerprint, 32)
	for _, p := range []string{art.FeatureStoreFilePath, art.TrainFilePath, art.TestFilePath} {
		assert.True(t, fileutil.Exists(p), p)
	}

	train, err := frame.LoadCSV(art.TrainFilePath, frame.DefaultMissingTokens)
	require.NoError(t, err)
	test, err := frame.LoadCSV(art.TestFilePath, frame.DefaultMissingTokens)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "having_IP_Address", "Result"}, train.Columns)

	seen := make(map[float64]bool)
	for _, part := range []*frame.Frame{train, test} {
		for _, row := range part.Rows {
			assert.False(t, seen[row[0]], "row %v appears twice", row[0])
			seen[row[0]] = true
		}
	}
	assert.Len(t, seen, 101)
}

func TestRunReproducible(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, fakeSource{docs: records(40)}, pipelog.Discard()).Run(context.Background())
	require.NoError(t, err)
	first, err := fileutil.ReadFile(a.TestFilePath)
	require.NoError(t, err)

	b, err := New(cfg, fakeSource{docs: records(40)}, pipelog.Discard()).Run(context.Background())
	require.NoError(t, err)
	second, err := fileutil.ReadFile(b.TestFilePath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestRunErrors(t *testing.T) {
	for name, src := range map[string]fakeSource{
		"unreachable": {err: fmt.Errorf("connection refused")},
		"empty":       {},
		"malformed":   {docs: []bson.D{{{Key: "a", Value: []int{1}}}}},
		"single row":  {docs: records(1)},
	} {
		cfg := testConfig(t)
		_, err := New(cfg, src, pipelog.Discard()).Run(context.Background())
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, errors.IngestionError), name)
	}
}

func TestSplitFailureKeepsFeatureStore(t *testing.T) {
	cfg := testConfig(t)
	// a single record is persisted but cannot be split
	_, err := New(cfg, fakeSource{docs: records(1)}, pipelog.Discard()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, fileutil.Exists(cfg.FeatureStoreFilePath))
	assert.False(t, fileutil.Exists(cfg.TrainFilePath))
}
