package validate

import (
	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/ingest"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/netsec-ml/netsec/netsec-golib/pipelog"
	"github.com/netsec-ml/netsec/netsec-golib/serialization"
)

// Report is the structured document written to the drift report path.
type Report struct {
	RunID       string       `yaml:"run_id"`
	TrainSchema SchemaReport `yaml:"train_schema"`
	TestSchema  SchemaReport `yaml:"test_schema"`
	Drift       DriftReport  `yaml:"drift"`
}

// Artifact is produced by DataValidation. Only paths that were written are set.
type Artifact struct {
	// ValidationStatus is true when both partitions passed the schema check
	ValidationStatus     bool
	ValidTrainFilePath   string
	ValidTestFilePath    string
	InvalidTrainFilePath string
	InvalidTestFilePath  string
	DriftReportFilePath  string
	DriftDetected        bool
	TrainSchema          SchemaReport
	TestSchema           SchemaReport
}

// DataValidation checks ingested partitions against the schema and reports drift.
type DataValidation struct {
	cfg    config.DataValidationConfig
	schema *config.Schema
	in     ingest.Artifact
	runID  string
	log    *pipelog.Logger
}

// New creates a DataValidation stage for the partitions referenced by in.
func New(cfg config.DataValidationConfig, schema *config.Schema, in ingest.Artifact, runID string, log *pipelog.Logger) *DataValidation {
	return &DataValidation{cfg: cfg, schema: schema, in: in, runID: runID, log: log}
}

// Run routes each partition to the valid or invalid directory and writes the drift report.
// It fails only when a partition cannot be read or an output cannot be written.
func (d *DataValidation) Run() (Artifact, error) {
	if d.schema == nil {
		return Artifact{}, errors.E(errors.ValidationError, nil, "no schema loaded")
	}
	train, err := frame.LoadCSV(d.in.TrainFilePath, frame.DefaultMissingTokens)
	if err != nil {
		return Artifact{}, errors.E(errors.ValidationError, err, "reading train partition")
	}
	test, err := frame.LoadCSV(d.in.TestFilePath, frame.DefaultMissingTokens)
	if err != nil {
		return Artifact{}, errors.E(errors.ValidationError, err, "reading test partition")
	}

	art := Artifact{
		TrainSchema:         CheckSchema(train, d.schema),
		TestSchema:          CheckSchema(test, d.schema),
		DriftReportFilePath: d.cfg.DriftReportFilePath,
	}
	art.ValidationStatus = art.TrainSchema.Status && art.TestSchema.Status

	for _, p := range []struct {
		name       string
		f          *frame.Frame
		report     SchemaReport
		valid      string
		invalid    string
		validOut   *string
		invalidOut *string
	}{
		{"train", train, art.TrainSchema, d.cfg.ValidTrainFilePath, d.cfg.InvalidTrainFilePath, &art.ValidTrainFilePath, &art.InvalidTrainFilePath},
		{"test", test, art.TestSchema, d.cfg.ValidTestFilePath, d.cfg.InvalidTestFilePath, &art.ValidTestFilePath, &art.InvalidTestFilePath},
	} {
		f, dst, out := p.f, p.valid, p.validOut
		if p.report.Status {
			// valid partitions are written in schema column order
			if f, err = p.f.Select(d.schema.Names()...); err != nil {
				return Artifact{}, errors.E(errors.ValidationError, err, "ordering %s partition", p.name)
			}
		} else {
			dst, out = p.invalid, p.invalidOut
			d.log.Warnf("%s partition failed schema check: missing=%v unexpected=%v violations=%v",
				p.name, p.report.MissingColumns, p.report.UnexpectedColumns, p.report.Violations)
		}
		if err := f.SaveCSV(dst); err != nil {
			return Artifact{}, errors.E(errors.ValidationError, err, "writing %s partition", p.name)
		}
		*out = dst
	}

	drift := DetectDrift(train, test, d.cfg.DriftThreshold)
	art.DriftDetected = drift.DriftDetected
	if drift.DriftDetected {
		var cols []string
		for _, c := range drift.Columns {
			if c.Drift {
				cols = append(cols, c.Column)
			}
		}
		d.log.Warnf("drift detected in %d columns: %v", len(cols), cols)
	}

	report := Report{RunID: d.runID, TrainSchema: art.TrainSchema, TestSchema: art.TestSchema, Drift: drift}
	if err := serialization.Encode(d.cfg.DriftReportFilePath, report); err != nil {
		return Artifact{}, errors.E(errors.ValidationError, err, "writing drift report")
	}
	d.log.Printf("validation status=%v drift=%v report=%s", art.ValidationStatus, art.DriftDetected, art.DriftReportFilePath)
	return art, nil
}
