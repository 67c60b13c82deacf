// Package training fits the trip-duration model: it lays the feature rows
// out as a Frame, splits them, grid-searches the forest hyperparameters with
// k-fold cross-validation on the training split, reports the held-out RMSE
// and refits the winner on every row.
package training

import (
	"context"
	"time"

	"github.com/YuminosukeSato/bikeshare/dataset"
	"github.com/YuminosukeSato/bikeshare/features"
	"github.com/YuminosukeSato/bikeshare/model_selection"
	"github.com/YuminosukeSato/bikeshare/pipeline"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
	"github.com/YuminosukeSato/bikeshare/preprocessing"
	"github.com/YuminosukeSato/bikeshare/sklearn/ensemble"
)

// Intermediate column names of the stage chain.
const (
	MemberIndexColumn    = "member_idx"
	MemberEncodedColumn  = "member_enc"
	FeaturesColumn       = "features"
	ScaledFeaturesColumn = "scaled_features"
	PredictionColumn     = "prediction"
)

// Defaults of the training protocol.
const (
	DefaultTrainRatio = 0.7
	DefaultNumFolds   = 7
	DefaultSeed       = 42
)

// AssemblerInputs returns the assembled feature columns in vector order.
func AssemblerInputs() []string {
	cols := []string{MemberEncodedColumn, features.LatitudeColumn, features.LongitudeColumn}
	return append(cols, features.CyclicalColumns...)
}

// BuildPipeline returns the unfitted stage chain for one hyperparameter
// candidate.
func BuildPipeline(p ensemble.ForestParams, forestOpts ...ensemble.Option) *pipeline.Pipeline {
	opts := append([]ensemble.Option{ensemble.WithParams(p)}, forestOpts...)
	return pipeline.New(
		preprocessing.NewStringIndexer(features.MemberTypeColumn, MemberIndexColumn),
		preprocessing.NewOneHotEncoder(MemberIndexColumn, MemberEncodedColumn),
		preprocessing.NewVectorAssembler(AssemblerInputs(), FeaturesColumn),
		preprocessing.NewScalerStage(FeaturesColumn, ScaledFeaturesColumn),
		ensemble.NewForestStage(ScaledFeaturesColumn, features.LabelColumn, PredictionColumn, opts...),
	)
}

// FoldObserver receives every cross-validation cycle as it completes.
type FoldObserver func(candidate, fold int, rmse float64, elapsed time.Duration)

// Option configures a Trainer.
type Option func(*Trainer)

// WithTrainRatio sets the expected share of rows in the training split.
func WithTrainRatio(r float64) Option {
	return func(t *Trainer) { t.trainRatio = r }
}

// WithNumFolds sets k.
func WithNumFolds(k int) Option {
	return func(t *Trainer) { t.numFolds = k }
}

// WithSeed seeds the split, the fold shuffle and the forests.
func WithSeed(seed uint64) Option {
	return func(t *Trainer) { t.seed = seed }
}

// WithGrid replaces the hyperparameter grid.
func WithGrid(grid []ensemble.ForestParams) Option {
	return func(t *Trainer) { t.grid = append([]ensemble.ForestParams(nil), grid...) }
}

// WithParallelism bounds concurrent cross-validation cycles.
func WithParallelism(n int) Option {
	return func(t *Trainer) { t.parallelism = n }
}

// WithForestOptions adds options to every forest in the chain.
func WithForestOptions(opts ...ensemble.Option) Option {
	return func(t *Trainer) { t.forestOpts = append(t.forestOpts, opts...) }
}

// WithFoldObserver registers a callback for every evaluated fold.
func WithFoldObserver(o FoldObserver) Option {
	return func(t *Trainer) { t.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// Trainer runs the split / grid search / holdout / refit protocol.
type Trainer struct {
	trainRatio  float64
	numFolds    int
	seed        uint64
	grid        []ensemble.ForestParams
	parallelism int
	forestOpts  []ensemble.Option
	observer    FoldObserver
	logger      log.Logger
}

// NewTrainer creates a Trainer with the default protocol: a 70/30 split,
// 7 folds and the 2 × 2 depth/tree grid.
func NewTrainer(opts ...Option) *Trainer {
	t := &Trainer{
		trainRatio: DefaultTrainRatio,
		numFolds:   DefaultNumFolds,
		seed:       DefaultSeed,
		grid:       ensemble.DefaultGrid(),
		logger:     log.GetLoggerWithName("training"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Result is the outcome of Train.
type Result struct {
	Model       *pipeline.Model
	Params      ensemble.ForestParams
	CV          *model_selection.CVResult[ensemble.ForestParams]
	HoldoutRMSE float64
	TrainRows   int
	TestRows    int
	TotalRows   int
}

func (t *Trainer) build(p ensemble.ForestParams) *pipeline.Pipeline {
	opts := append([]ensemble.Option{ensemble.WithSeed(t.seed)}, t.forestOpts...)
	return BuildPipeline(p, opts...).WithLogger(t.logger)
}

// Train fits the model on rows. Degenerate data is reported as
// ErrTrainingDataInsufficient before any stage is fitted.
func (t *Trainer) Train(ctx context.Context, rows *dataset.Table[features.FeatureRow]) (*Result, error) {
	if rows.Count() == 0 {
		return nil, errors.NewTrainingDataInsufficientError("Trainer.Train", 0, "empty feature table")
	}
	all, err := features.ToFrame(rows)
	if err != nil {
		return nil, err
	}
	train, test, err := model_selection.TrainTestSplit(all, t.trainRatio, t.seed)
	if err != nil {
		return nil, err
	}
	t.logger.Info("data split",
		log.PhaseKey, log.PhaseTraining,
		log.InputSamplesKey, all.Len(),
		log.FeaturesKey, len(AssemblerInputs()),
		"data.train_samples", train.Len(),
		"data.test_samples", test.Len(),
		log.RandomSeedKey, t.seed,
	)

	evaluator := model_selection.NewRegressionEvaluator(features.LabelColumn, PredictionColumn)
	cv := &model_selection.CrossValidator[ensemble.ForestParams]{
		Build:       t.build,
		Grid:        t.grid,
		Evaluator:   evaluator,
		NumFolds:    t.numFolds,
		Seed:        t.seed,
		Parallelism: t.parallelism,
		Logger:      t.logger,
		OnFold:      t.observer,
	}
	start := time.Now()
	cvModel, err := cv.Fit(ctx, train)
	if err != nil {
		return nil, errors.Wrap(err, "cross-validation")
	}
	best := cvModel.Result.Best()
	t.logger.Info("best hyperparameters selected",
		log.PhaseKey, log.PhaseValidation,
		log.HyperParamsKey, best.String(),
		log.AvgMetricsKey, cvModel.Result.AvgMetrics,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	scored, err := cvModel.BestModel.Transform(test)
	if err != nil {
		return nil, errors.Wrap(err, "score holdout")
	}
	holdout, err := evaluator.Evaluate(scored)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate holdout")
	}
	t.logger.Info("holdout evaluated",
		log.PhaseKey, log.PhaseTesting,
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, test.Len(),
		log.RMSEKey, holdout,
	)

	final, err := t.build(best).Fit(ctx, all)
	if err != nil {
		return nil, errors.Wrap(err, "refit on all rows")
	}
	t.logger.Info("refit on all rows",
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, all.Len(),
		log.HyperParamsKey, best.String(),
	)

	return &Result{
		Model:       final,
		Params:      best,
		CV:          cvModel.Result,
		HoldoutRMSE: holdout,
		TrainRows:   train.Len(),
		TestRows:    test.Len(),
		TotalRows:   all.Len(),
	}, nil
}

// Score applies a fitted chain to feature rows and returns one predicted
// label per row.
func Score(m *pipeline.Model, rows *dataset.Table[features.FeatureRow]) ([]float64, error) {
	f, err := features.ToFrame(rows)
	if err != nil {
		return nil, err
	}
	out, err := m.Transform(f)
	if err != nil {
		return nil, err
	}
	return out.Floats(PredictionColumn)
}
