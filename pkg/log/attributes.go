// Standard attribute keys for the training job's structured logs.
//
// Keys follow a hierarchical naming convention ("data.samples",
// "metrics.rmse") so that a run's records can be filtered per stage, per
// grid candidate or per fold.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator or stage type.
	// Examples: "StringIndexer", "StandardScaler", "RandomForestRegressor"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "transform", "read", "filter", "join", "publish"
	OperationKey = "ml.operation"

	// ComponentKey identifies the package emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"

	// RunNameKey is the run name passed on the command line.
	RunNameKey = "run.name"

	// RunIDKey is the unique id stamped on the published artifact.
	RunIDKey = "run.id"
)

// Data shape.
const (
	// SamplesKey is the number of rows after an operation.
	SamplesKey = "data.samples"

	// InputSamplesKey is the number of rows before an operation.
	InputSamplesKey = "data.input_samples"

	// ExcludedKey is the number of rows an operation dropped.
	ExcludedKey = "data.excluded"

	// FeaturesKey is the width of the assembled feature vector.
	FeaturesKey = "data.features"

	// FilesKey is the number of input objects read.
	FilesKey = "data.files"

	// LocationKey is a storage location or key.
	LocationKey = "data.location"
)

// Model selection.
const (
	// CandidateKey is the index of a hyperparameter candidate in the grid.
	CandidateKey = "cv.candidate"

	// FoldKey is the index of a cross-validation fold.
	FoldKey = "cv.fold"

	// NumFoldsKey is k in k-fold cross-validation.
	NumFoldsKey = "cv.num_folds"

	// HyperParamsKey carries a candidate's hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Performance and metrics.
const (
	// DurationMsKey is the wall time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// RMSEKey is a root-mean-squared error in log-duration space.
	RMSEKey = "metrics.rmse"

	// AvgMetricsKey is the per-candidate mean cross-validated RMSE.
	AvgMetricsKey = "metrics.avg"
)

// Error context.
const (
	// ErrorTypeKey is the Go type of a logged error or warning.
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationTransform = "transform"
	OperationRead      = "read"
	OperationFilter    = "filter"
	OperationJoin      = "join"
	OperationEvaluate  = "evaluate"
	OperationPublish   = "publish"

	PhaseIngest        = "ingest"
	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePublishing    = "publishing"
)
