package config

import (
	"path/filepath"
	"time"
)

// TimestampFormat is month_day_year_hour_minute_second
const TimestampFormat = "01_02_2006_15_04_05"

// RunConfig is built once per pipeline invocation and never modified.
type RunConfig struct {
	Constants Constants
	RunID     string
	Timestamp time.Time
	// ArtifactDir is <artifact root>/<run id>
	ArtifactDir   string
	FinalModelDir string
	Seed          int64
}

// NewRunConfig derives the run configuration for a pipeline started at ts.
func NewRunConfig(c Constants, ts time.Time) RunConfig {
	runID := ts.Format(TimestampFormat)
	return RunConfig{
		Constants:     c,
		RunID:         runID,
		Timestamp:     ts,
		ArtifactDir:   filepath.Join(c.ArtifactDir, runID),
		FinalModelDir: c.FinalModelDir,
		Seed:          c.Seed,
	}
}

// DataIngestionConfig holds what DataIngestion needs.
type DataIngestionConfig struct {
	Dir                  string
	FeatureStoreFilePath string
	TrainFilePath        string
	TestFilePath         string
	SplitRatio           float64
	DatabaseName         string
	CollectionName       string
	Seed                 int64
}

// DataIngestion returns the ingestion stage configuration.
func (r RunConfig) DataIngestion() DataIngestionConfig {
	c := r.Constants
	dir := filepath.Join(r.ArtifactDir, c.IngestionDirName)
	return DataIngestionConfig{
		Dir:                  dir,
		FeatureStoreFilePath: filepath.Join(dir, c.FeatureStoreDirName, c.FileName),
		TrainFilePath:        filepath.Join(dir, c.IngestedDirName, c.TrainFileName),
		TestFilePath:         filepath.Join(dir, c.IngestedDirName, c.TestFileName),
		SplitRatio:           c.TrainTestSplitRatio,
		DatabaseName:         c.DatabaseName,
		CollectionName:       c.CollectionName,
		Seed:                 r.Seed,
	}
}

// DataValidationConfig holds what DataValidation needs.
type DataValidationConfig struct {
	Dir                  string
	ValidTrainFilePath   string
	ValidTestFilePath    string
	InvalidTrainFilePath string
	InvalidTestFilePath  string
	DriftReportFilePath  string
	DriftThreshold       float64
	SchemaFilePath       string
}

// DataValidation returns the validation stage configuration.
func (r RunConfig) DataValidation() DataValidationConfig {
	c := r.Constants
	dir := filepath.Join(r.ArtifactDir, c.ValidationDirName)
	valid := filepath.Join(dir, c.ValidDirName)
	invalid := filepath.Join(dir, c.InvalidDirName)
	return DataValidationConfig{
		Dir:                  dir,
		ValidTrainFilePath:   filepath.Join(valid, c.TrainFileName),
		ValidTestFilePath:    filepath.Join(valid, c.TestFileName),
		InvalidTrainFilePath: filepath.Join(invalid, c.TrainFileName),
		InvalidTestFilePath:  filepath.Join(invalid, c.TestFileName),
		DriftReportFilePath:  filepath.Join(dir, c.DriftReportDirName, c.DriftReportFileName),
		DriftThreshold:       c.DriftThreshold,
		SchemaFilePath:       c.SchemaFilePath,
	}
}

// DataTransformationConfig holds what DataTransformation needs.
type DataTransformationConfig struct {
	Dir                       string
	TransformedTrainFilePath  string
	TransformedTestFilePath   string
	TransformedObjectFilePath string
	TargetColumn              string
	ImputerNeighbors          int
	ImputerWeights            string
}

// DataTransformation returns the transformation stage configuration.
func (r RunConfig) DataTransformation() DataTransformationConfig {
	c := r.Constants
	dir := filepath.Join(r.ArtifactDir, c.TransformationDirName)
	return DataTransformationConfig{
		Dir:                       dir,
		TransformedTrainFilePath:  filepath.Join(dir, c.TransformedDirName, c.TransformedTrainFileName),
		TransformedTestFilePath:   filepath.Join(dir, c.TransformedDirName, c.TransformedTestFileName),
		TransformedObjectFilePath: filepath.Join(dir, c.TransformedObjectDirName, c.PreprocessingObjectFileName),
		TargetColumn:              c.TargetColumn,
		ImputerNeighbors:          c.ImputerNeighbors,
		ImputerWeights:            c.ImputerWeights,
	}
}

// ModelTrainerConfig holds what ModelTrainer needs.
type ModelTrainerConfig struct {
	Dir                   string
	TrainedModelFilePath  string
	FinalModelFilePath    string
	FinalPreprocessorPath string
	ModelParamsFilePath   string
	ExpectedScore         float64
	FitQualityThreshold   float64
	Seed                  int64
}

// ModelTrainer returns the training stage configuration.
func (r RunConfig) ModelTrainer() ModelTrainerConfig {
	c := r.Constants
	dir := filepath.Join(r.ArtifactDir, c.TrainerDirName)
	return ModelTrainerConfig{
		Dir:                   dir,
		TrainedModelFilePath:  filepath.Join(dir, c.TrainedModelDirName, c.TrainedModelFileName),
		FinalModelFilePath:    filepath.Join(r.FinalModelDir, c.TrainedModelFileName),
		FinalPreprocessorPath: filepath.Join(r.FinalModelDir, c.PreprocessorFileName),
		ModelParamsFilePath:   c.ModelParamsFilePath,
		ExpectedScore:         c.ExpectedScore,
		FitQualityThreshold:   c.FitQualityThreshold,
		Seed:                  r.Seed,
	}
}
