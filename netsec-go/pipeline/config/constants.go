package config

// Constants are the named defaults every run configuration is derived from.
type Constants struct {
	PipelineName string
	// ArtifactDir is the root under which each run gets a timestamped directory
	ArtifactDir string
	// FinalModelDir holds the stable model/preprocessor pair read by the server
	FinalModelDir string

	FileName      string
	TrainFileName string
	TestFileName  string
	TargetColumn  string

	SchemaFilePath      string
	ModelParamsFilePath string

	DatabaseName        string
	CollectionName      string
	IngestionDirName    string
	FeatureStoreDirName string
	IngestedDirName     string
	TrainTestSplitRatio float64

	ValidationDirName   string
	ValidDirName        string
	InvalidDirName      string
	DriftReportDirName  string
	DriftReportFileName string
	// DriftThreshold is the significance level below which a column is reported as drifted
	DriftThreshold float64

	TransformationDirName       string
	TransformedDirName          string
	TransformedObjectDirName    string
	TransformedTrainFileName    string
	TransformedTestFileName     string
	PreprocessingObjectFileName string
	ImputerNeighbors            int
	ImputerWeights              string

	TrainerDirName       string
	TrainedModelDirName  string
	TrainedModelFileName string
	PreprocessorFileName string
	ExpectedScore        float64
	FitQualityThreshold  float64

	// Seed drives the split, the tree ensembles and the grid search folds
	Seed int64
}

// DefaultConstants returns the constants used by the training pipeline.
func DefaultConstants() Constants {
	return Constants{
		PipelineName:  "NetworkSecurity",
		ArtifactDir:   "Artifacts",
		FinalModelDir: "final_model",

		FileName:      "phisingData.csv",
		TrainFileName: "train.csv",
		TestFileName:  "test.csv",
		TargetColumn:  "Result",

		SchemaFilePath:      "data_schema/schema.yaml",
		ModelParamsFilePath: "model_params/model_params.yaml",

		DatabaseName:        "network_security",
		CollectionName:      "Network_Security_Data",
		IngestionDirName:    "data_ingestion",
		FeatureStoreDirName: "feature_store",
		IngestedDirName:     "ingested",
		TrainTestSplitRatio: 0.2,

		ValidationDirName:   "data_validation",
		ValidDirName:        "validated",
		InvalidDirName:      "invalid",
		DriftReportDirName:  "drift_report",
		DriftReportFileName: "report.yaml",
		DriftThreshold:      0.05,

		TransformationDirName:       "data_transformation",
		TransformedDirName:          "transformed",
		TransformedObjectDirName:    "transformed_object",
		TransformedTrainFileName:    "train.bin",
		TransformedTestFileName:     "test.bin",
		PreprocessingObjectFileName: "preprocessing.bin",
		ImputerNeighbors:            3,
		ImputerWeights:              "uniform",

		TrainerDirName:       "model_trainer",
		TrainedModelDirName:  "trained_model",
		TrainedModelFileName: "model.bin",
		PreprocessorFileName: "preprocessor.bin",
		ExpectedScore:        0.6,
		FitQualityThreshold:  0.05,

		Seed: 42,
	}
}
