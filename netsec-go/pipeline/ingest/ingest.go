package ingest

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	spooky "github.com/dgryski/go-spooky"
	"github.com/netsec-ml/netsec/netsec-go/docstore"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/netsec-ml/netsec/netsec-golib/pipelog"
	"go.mongodb.org/mongo-driver/bson"
)

// DocumentSource is a full-collection reader.
type DocumentSource interface {
	Export(ctx context.Context, database, collection string) ([]bson.D, error)
}

// Artifact is produced by a successful DataIngestion run.
type Artifact struct {
	FeatureStoreFilePath string
	TrainFilePath        string
	TestFilePath         string
	Rows                 int
	TrainRows            int
	TestRows             int
	// Fingerprint is a spooky128 hash of the feature store file contents
	Fingerprint string
}

// DataIngestion exports the collection, persists the snapshot and splits it.
type DataIngestion struct {
	cfg    config.DataIngestionConfig
	source DocumentSource
	log    *pipelog.Logger
}

// New creates a DataIngestion stage.
func New(cfg config.DataIngestionConfig, source DocumentSource, log *pipelog.Logger) *DataIngestion {
	return &DataIngestion{cfg: cfg, source: source, log: log}
}

// ExportSnapshot reads every document of the configured collection into a frame.
func (d *DataIngestion) ExportSnapshot(ctx context.Context) (*frame.Frame, error) {
	docs, err := d.source.Export(ctx, d.cfg.DatabaseName, d.cfg.CollectionName)
	if err != nil {
		return nil, errors.E(errors.IngestionError, err, "exporting %s.%s", d.cfg.DatabaseName, d.cfg.CollectionName)
	}
	if len(docs) == 0 {
		return nil, errors.E(errors.IngestionError, nil, "collection %s.%s is empty", d.cfg.DatabaseName, d.cfg.CollectionName)
	}
	f, err := FromDocuments(docs)
	if err != nil {
		return nil, errors.E(errors.IngestionError, err, "collection %s.%s is malformed", d.cfg.DatabaseName, d.cfg.CollectionName)
	}
	d.log.Printf("exported %d records with %d columns from %s.%s", f.Len(), len(f.Columns), d.cfg.DatabaseName, d.cfg.CollectionName)
	return f, nil
}

// PersistFeatureStore writes the snapshot to the feature store path and returns its fingerprint.
func (d *DataIngestion) PersistFeatureStore(f *frame.Frame) (string, error) {
	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		return "", errors.E(errors.IngestionError, err, "encoding feature store")
	}
	if err := fileutil.WriteFile(d.cfg.FeatureStoreFilePath, buf.Bytes()); err != nil {
		return "", errors.E(errors.IngestionError, err, "writing feature store")
	}
	var h1, h2 uint64
	spooky.Hash128(buf.Bytes(), &h1, &h2)
	return fmt.Sprintf("%016x%016x", h1, h2), nil
}

// Split randomly partitions the snapshot and writes both partitions.
func (d *DataIngestion) Split(f *frame.Frame) (train, test *frame.Frame, err error) {
	rng := rand.New(rand.NewSource(d.cfg.Seed))
	train, test, err = f.Split(d.cfg.SplitRatio, rng)
	if err != nil {
		return nil, nil, errors.E(errors.IngestionError, err, "splitting %d records", f.Len())
	}
	if err := train.SaveCSV(d.cfg.TrainFilePath); err != nil {
		return nil, nil, errors.E(errors.IngestionError, err, "writing train partition")
	}
	if err := test.SaveCSV(d.cfg.TestFilePath); err != nil {
		return nil, nil, errors.E(errors.IngestionError, err, "writing test partition")
	}
	d.log.Printf("split %d records into %d train and %d test", f.Len(), train.Len(), test.Len())
	return train, test, nil
}

// Run exports, persists and splits the snapshot.
func (d *DataIngestion) Run(ctx context.Context) (Artifact, error) {
	f, err := d.ExportSnapshot(ctx)
	if err != nil {
		return Artifact{}, err
	}
	fp, err := d.PersistFeatureStore(f)
	if err != nil {
		return Artifact{}, err
	}
	train, test, err := d.Split(f)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		FeatureStoreFilePath: d.cfg.FeatureStoreFilePath,
		TrainFilePath:        d.cfg.TrainFilePath,
		TestFilePath:         d.cfg.TestFilePath,
		Rows:                 f.Len(),
		TrainRows:            train.Len(),
		TestRows:             test.Len(),
		Fingerprint:          fp,
	}, nil
}

// FromDocuments builds a frame from documents. Columns follow first-seen field order,
// the store identity field is dropped, and absent fields or missing tokens become frame.Missing.
func FromDocuments(docs []bson.D) (*frame.Frame, error) {
	index := make(map[string]int)
	var columns []string
	for _, doc := range docs {
		for _, e := range doc {
			if e.Key == docstore.IDField {
				continue
			}
			if _, ok := index[e.Key]; !ok {
				index[e.Key] = len(columns)
				columns = append(columns, e.Key)
			}
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("documents have no fields")
	}

	f := frame.New(columns...)
	for i, doc := range docs {
		row := make([]float64, len(columns))
		for j := range row {
			row[j] = frame.Missing
		}
		for _, e := range doc {
			if e.Key == docstore.IDField {
				continue
			}
			v, err := toFloat(e.Value)
			if err != nil {
				return nil, fmt.Errorf("document %d field %s: %v", i, e.Key, err)
			}
			row[index[e.Key]] = v
		}
		f.Append(row)
	}
	return f, nil
}

func isMissingToken(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	for _, tok := range frame.DefaultMissingTokens {
		if s == tok {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case nil:
		return frame.Missing, nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case float64:
		return t, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		if isMissingToken(t) {
			return frame.Missing, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric value %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported value of type %T", v)
	}
}
