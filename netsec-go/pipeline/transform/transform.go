package transform

import (
	"github.com/netsec-ml/netsec/netsec-go/impute"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/validate"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/netsec-ml/netsec/netsec-golib/pipelog"
	"github.com/netsec-ml/netsec/netsec-golib/serialization"
)

// Artifact is produced by DataTransformation.
type Artifact struct {
	TransformedTrainFilePath  string
	TransformedTestFilePath   string
	TransformedObjectFilePath string
	// Features lists the feature columns in matrix order
	Features []string
}

// DataTransformation imputes missing values and writes numeric matrices with the label last.
type DataTransformation struct {
	cfg config.DataTransformationConfig
	in  validate.Artifact
	log *pipelog.Logger
}

// New creates a DataTransformation stage for the partitions referenced by in.
func New(cfg config.DataTransformationConfig, in validate.Artifact, log *pipelog.Logger) *DataTransformation {
	return &DataTransformation{cfg: cfg, in: in, log: log}
}

// Labels maps the source label encoding {-1, 1} onto {0, 1}. Any other value is an error.
func Labels(y []float64) ([]float64, error) {
	out := make([]float64, len(y))
	for i, v := range y {
		switch v {
		case -1, 0:
			out[i] = 0
		case 1:
			out[i] = 1
		default:
			return nil, errors.Errorf("row %d: label %v is not one of -1, 0, 1", i, v)
		}
	}
	return out, nil
}

// FitTransform fits a new imputer on train and returns it with the transformed train matrix.
func (d *DataTransformation) FitTransform(train *frame.Frame) (*impute.KNNImputer, frame.Matrix, []string, error) {
	x, y, names, err := d.split(train)
	if err != nil {
		return nil, nil, nil, err
	}
	imp, err := impute.NewKNNImputer(d.cfg.ImputerNeighbors, d.cfg.ImputerWeights)
	if err != nil {
		return nil, nil, nil, errors.E(errors.TransformationError, err, "configuring imputer")
	}
	xt, err := imp.FitTransform(x)
	if err != nil {
		return nil, nil, nil, errors.E(errors.TransformationError, err, "fitting imputer")
	}
	m, err := xt.AppendLabel(y)
	if err != nil {
		return nil, nil, nil, errors.E(errors.TransformationError, err, "appending labels")
	}
	return imp, m, names, nil
}

// Transform applies an already fitted imputer to test.
func (d *DataTransformation) Transform(test *frame.Frame, imp *impute.KNNImputer) (frame.Matrix, error) {
	x, y, _, err := d.split(test)
	if err != nil {
		return nil, err
	}
	xt, err := imp.Transform(x)
	if err != nil {
		return nil, errors.E(errors.TransformationError, err, "applying imputer")
	}
	m, err := xt.AppendLabel(y)
	if err != nil {
		return nil, errors.E(errors.TransformationError, err, "appending labels")
	}
	return m, nil
}

// Persist writes both matrices and the fitted imputer to the configured paths.
func (d *DataTransformation) Persist(train, test frame.Matrix, imp *impute.KNNImputer) error {
	for _, out := range []struct {
		path string
		obj  interface{}
	}{
		{d.cfg.TransformedTrainFilePath, train},
		{d.cfg.TransformedTestFilePath, test},
		{d.cfg.TransformedObjectFilePath, imp},
	} {
		if err := serialization.Encode(out.path, out.obj); err != nil {
			return errors.E(errors.TransformationError, err, "writing %s", out.path)
		}
	}
	return nil
}

// Run loads the validated partitions, fits on train, transforms test and persists everything.
func (d *DataTransformation) Run() (Artifact, error) {
	if !d.in.ValidationStatus || d.in.ValidTrainFilePath == "" || d.in.ValidTestFilePath == "" {
		return Artifact{}, errors.E(errors.TransformationError, nil,
			"no valid partitions to transform, see %s", d.in.DriftReportFilePath)
	}
	train, err := frame.LoadCSV(d.in.ValidTrainFilePath, frame.DefaultMissingTokens)
	if err != nil {
		return Artifact{}, errors.E(errors.TransformationError, err, "reading valid train partition")
	}
	test, err := frame.LoadCSV(d.in.ValidTestFilePath, frame.DefaultMissingTokens)
	if err != nil {
		return Artifact{}, errors.E(errors.TransformationError, err, "reading valid test partition")
	}
	if !sameColumns(train.Columns, test.Columns) {
		return Artifact{}, errors.E(errors.TransformationError, nil,
			"train columns %v differ from test columns %v", train.Columns, test.Columns)
	}

	imp, trainM, names, err := d.FitTransform(train)
	if err != nil {
		return Artifact{}, err
	}
	testM, err := d.Transform(test, imp)
	if err != nil {
		return Artifact{}, err
	}
	if err := d.Persist(trainM, testM, imp); err != nil {
		return Artifact{}, err
	}

	rows, cols := trainM.Dims()
	d.log.Printf("transformed train %dx%d and test %d rows with %d-nn imputer (%s)",
		rows, cols, len(testM), d.cfg.ImputerNeighbors, d.cfg.ImputerWeights)
	return Artifact{
		TransformedTrainFilePath:  d.cfg.TransformedTrainFilePath,
		TransformedTestFilePath:   d.cfg.TransformedTestFilePath,
		TransformedObjectFilePath: d.cfg.TransformedObjectFilePath,
		Features:                  names,
	}, nil
}

func (d *DataTransformation) split(f *frame.Frame) (frame.Matrix, []float64, []string, error) {
	x, y, names, err := f.XY(d.cfg.TargetColumn)
	if err != nil {
		return nil, nil, nil, errors.E(errors.TransformationError, err, "separating target")
	}
	if len(names) == 0 {
		return nil, nil, nil, errors.E(errors.TransformationError, nil, "no feature columns")
	}
	y, err = Labels(y)
	if err != nil {
		return nil, nil, nil, errors.E(errors.TransformationError, err, "encoding target")
	}
	return x, y, names, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
