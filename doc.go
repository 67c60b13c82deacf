// Package bikeshare trains a model that predicts bike-share trip duration
// from historical trip and station records.
//
// A run is a batch job. It reads raw trip and station CSV files from an
// object store, cleans them, derives model-ready features, picks forest
// hyperparameters by cross-validated grid search, refits the winner on the
// full dataset and publishes the fitted stage chain for later scoring.
//
// # Quick Start
//
//	bikeshare-train bikeshare-ml data/bike-share-data models
//
// reads data/bike-share-data/rides/*.csv and data/bike-share-data/stations/*.csv
// and writes models/bikeshare-ml.v1/. The same run from Go:
//
//	cfg, err := config.Load([]string{"bikeshare-ml", "data/bike-share-data", "models"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sum, err := job.Run(ctx, cfg, job.Deps{})
//
// A published model scores new rows:
//
//	model, meta, err := artifact.Load(ctx, store, "bikeshare-ml.v1")
//	pred, err := training.Score(model, rows) // log1p(duration)
//
// # Packages
//
// The pipeline stages, in run order:
//
//   - source: CSV reader over a storage.Store
//   - cleaning: duration and member-type filters, station join, exclusion list
//   - features: log1p label and cyclical time encoding
//   - training: split, grid search, holdout evaluation and refit
//   - artifact: versioned model directory with metadata.json written last
//
// Supporting packages:
//
//   - pipeline: columnar Frame and the Estimator / Transformer stage chain
//   - preprocessing: StringIndexer, OneHotEncoder, VectorAssembler, StandardScaler
//   - sklearn/tree, sklearn/ensemble: binned regression trees and the random forest
//   - model_selection: TrainTestSplit, KFold, CrossValidator, RegressionEvaluator
//   - metrics: MSE, RMSE, MAE, R²
//   - dataset: generic row table with Filter, Map and LeftJoin
//   - storage: object-store interface with local and in-memory stores
//   - config, telemetry, report, cluster, job
//   - core/model, core/parallel, pkg/errors, pkg/log
//
// # Reproducibility
//
// The split, the fold shuffle and every tree draw from seeded PCG
// generators. Two runs with the same seed and input produce the same fold
// metrics and the same model, regardless of how many folds run at once.
package bikeshare
