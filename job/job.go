// Package job runs one end-to-end training job: read, clean, derive
// features, train and publish.
package job

import (
	"context"
	"time"

	"github.com/YuminosukeSato/bikeshare/artifact"
	"github.com/YuminosukeSato/bikeshare/cleaning"
	"github.com/YuminosukeSato/bikeshare/config"
	"github.com/YuminosukeSato/bikeshare/features"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
	"github.com/YuminosukeSato/bikeshare/sklearn/ensemble"
	"github.com/YuminosukeSato/bikeshare/source"
	"github.com/YuminosukeSato/bikeshare/storage"
	"github.com/YuminosukeSato/bikeshare/telemetry"
	"github.com/YuminosukeSato/bikeshare/training"
)

// Deps are the collaborators of a run. Nil stores are opened from the
// configured locations.
type Deps struct {
	Input    storage.Store
	Output   storage.Store
	Logger   log.Logger
	Recorder *telemetry.Recorder
	Now      func() time.Time
}

// Summary describes a finished run.
type Summary struct {
	RunID       string
	Name        string
	ArtifactDir string
	Trips       source.ReadStats
	Stations    source.ReadStats
	Clean       cleaning.Stats
	Features    features.Stats
	Params      ensemble.ForestParams
	AvgMetrics  []float64
	HoldoutRMSE float64
	TrainRows   int
	TestRows    int
	Duration    time.Duration
}

// Run executes the stages in order. The first failure stops the run.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (sum *Summary, err error) {
	defer errors.Recover(&err, "job.Run")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = log.GetLoggerWithName("job")
	}
	if deps.Recorder == nil {
		deps.Recorder = telemetry.NewRecorder()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Input == nil {
		if deps.Input, err = storage.Open(cfg.Run.Input); err != nil {
			return nil, err
		}
	}
	if deps.Output == nil {
		if deps.Output, err = storage.Open(cfg.Run.Output); err != nil {
			return nil, err
		}
	}

	logger := deps.Logger.With(log.RunNameKey, cfg.Run.Name)
	rec := deps.Recorder
	started := deps.Now()
	defer func() {
		rec.SetOutcome(err == nil, deps.Now())
		if cfg.Metrics.Textfile == "" {
			return
		}
		if werr := rec.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.Warn("metrics export failed", log.ErrAttrKey, werr)
		}
	}()

	sum = &Summary{Name: cfg.Run.Name, ArtifactDir: artifact.Dir(cfg.Run.Name)}

	// Read
	stageStart := deps.Now()
	reader := source.NewReader(deps.Input,
		source.WithColumns(cfg.Source.Columns),
		source.WithConcurrency(cfg.Source.Concurrency),
		source.WithLogger(logger.With(log.ComponentKey, "source", log.PhaseKey, log.PhaseIngest)),
	)
	trips, tripStats, err := reader.ReadTrips(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "read trips")
	}
	stations, stationStats, err := reader.ReadStations(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "read stations")
	}
	sum.Trips, sum.Stations = tripStats, stationStats
	rec.SetRows(telemetry.StageReadTrips, tripStats.Rows)
	rec.SetRows(telemetry.StageReadStations, stationStats.Rows)
	rec.ObserveStage(telemetry.StageReadTrips, deps.Now().Sub(stageStart))

	// Clean
	stageStart = deps.Now()
	cleaned, cleanStats := cleaning.Clean(trips, stations, logger.With(log.ComponentKey, "cleaning"))
	sum.Clean = cleanStats
	rec.SetRows(telemetry.StageClean, cleanStats.AfterExclude)
	rec.ObserveStage(telemetry.StageClean, deps.Now().Sub(stageStart))

	// Features
	stageStart = deps.Now()
	rows, featStats := features.Transform(cleaned, logger.With(log.ComponentKey, "features"))
	sum.Features = featStats
	rec.SetRows(telemetry.StageFeatures, featStats.Output)
	rec.ObserveStage(telemetry.StageFeatures, deps.Now().Sub(stageStart))

	// Train
	stageStart = deps.Now()
	t := cfg.Training
	trainer := training.NewTrainer(
		training.WithTrainRatio(t.TrainRatio),
		training.WithNumFolds(t.NumFolds),
		training.WithSeed(t.Seed),
		training.WithGrid(t.Grid),
		training.WithParallelism(t.Parallelism),
		training.WithForestOptions(
			ensemble.WithMaxBins(t.MaxBins),
			ensemble.WithFeatureSubset(t.FeatureSubset),
			ensemble.WithWorkers(t.Workers),
		),
		training.WithFoldObserver(rec.ObserveFold),
		training.WithLogger(logger.With(log.ComponentKey, "training")),
	)
	res, err := trainer.Train(ctx, rows)
	if err != nil {
		return nil, errors.Wrap(err, "train")
	}
	rec.SetRows(telemetry.StageTrain, res.TrainRows)
	rec.SetRows(telemetry.StageTest, res.TestRows)
	rec.ObserveStage(telemetry.StageTrain, deps.Now().Sub(stageStart))
	labels := make([]string, len(res.CV.Params))
	for i, p := range res.CV.Params {
		labels[i] = p.String()
	}
	rec.SetCV(labels, res.CV.AvgMetrics)
	rec.SetHoldout(res.HoldoutRMSE)

	sum.Params = res.Params
	sum.AvgMetrics = res.CV.AvgMetrics
	sum.HoldoutRMSE = res.HoldoutRMSE
	sum.TrainRows, sum.TestRows = res.TrainRows, res.TestRows
	logger.Info("training finished",
		log.AvgMetricsKey, res.CV.AvgMetrics,
		log.RMSEKey, res.HoldoutRMSE,
		log.HyperParamsKey, res.Params.String(),
	)

	// Publish
	stageStart = deps.Now()
	meta, err := artifact.NewPublisher(deps.Output,
		artifact.WithReport(cfg.Artifact.Report),
		artifact.WithClock(deps.Now),
		artifact.WithLogger(logger.With(log.ComponentKey, "artifact")),
	).Publish(ctx, cfg.Run.Name, t.NumFolds, res)
	if err != nil {
		return nil, errors.Wrap(err, "publish")
	}
	rec.ObserveStage(telemetry.StagePublish, deps.Now().Sub(stageStart))

	sum.RunID = meta.RunID
	sum.Duration = deps.Now().Sub(started)
	logger.Info("run finished",
		log.RunIDKey, meta.RunID,
		log.LocationKey, sum.ArtifactDir,
		log.DurationMsKey, sum.Duration.Milliseconds(),
	)
	return sum, nil
}
