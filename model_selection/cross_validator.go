package model_selection

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/bikeshare/pipeline"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
)

// CrossValidator runs an exhaustive grid search with k-fold
// cross-validation. P is the hyperparameter type of one grid candidate;
// Build turns a candidate into an unfitted pipeline.
type CrossValidator[P any] struct {
	Build     func(P) *pipeline.Pipeline
	Grid      []P
	Evaluator *RegressionEvaluator
	NumFolds  int
	Seed      uint64
	// Parallelism bounds the number of candidate × fold cycles in flight.
	// Zero means GOMAXPROCS.
	Parallelism int
	Logger      log.Logger
	// OnFold, when set, is called after every evaluated cycle. It may be
	// called concurrently.
	OnFold func(candidate, fold int, metric float64, elapsed time.Duration)
}

// CVResult holds the metrics of every grid candidate.
type CVResult[P any] struct {
	Params []P
	// AvgMetrics[c] is the mean of FoldMetrics[c].
	AvgMetrics []float64
	// FoldMetrics[c][k] is the metric of candidate c on fold k.
	FoldMetrics [][]float64
	// Fits is the number of fit/evaluate cycles run.
	Fits      int
	BestIndex int
}

// Best returns the winning candidate.
func (r *CVResult[P]) Best() P {
	return r.Params[r.BestIndex]
}

// CVModel is the outcome of CrossValidator.Fit: the per-candidate metrics
// and the winning candidate refitted on the whole input.
type CVModel[P any] struct {
	Result    *CVResult[P]
	BestModel *pipeline.Model
}

// Fit evaluates every candidate on every fold of f, picks the best mean
// metric and refits that candidate on all of f. Ties go to the candidate
// listed first in Grid.
func (cv *CrossValidator[P]) Fit(ctx context.Context, f *pipeline.Frame) (*CVModel[P], error) {
	res, err := cv.Evaluate(ctx, f)
	if err != nil {
		return nil, err
	}
	best, err := cv.Build(res.Best()).Fit(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "refit best candidate")
	}
	return &CVModel[P]{Result: res, BestModel: best}, nil
}

// Evaluate runs the len(Grid) × NumFolds fit/evaluate cycles and
// aggregates them. No fit starts before the folds have been checked.
func (cv *CrossValidator[P]) Evaluate(ctx context.Context, f *pipeline.Frame) (*CVResult[P], error) {
	if len(cv.Grid) == 0 {
		return nil, errors.NewValidationError("grid", "must contain at least one candidate", 0)
	}
	if cv.NumFolds < 2 {
		return nil, errors.NewValidationError("num_folds", "must be at least 2", cv.NumFolds)
	}
	if f.Len() == 0 {
		return nil, errors.NewTrainingDataInsufficientError("CrossValidator.Evaluate", 0, "empty training split")
	}
	logger := cv.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("model_selection")
	}

	folds, err := NewKFold(cv.NumFolds, true, cv.Seed).Split(f.Len())
	if err != nil {
		return nil, err
	}
	trainFrames := make([]*pipeline.Frame, len(folds))
	testFrames := make([]*pipeline.Frame, len(folds))
	for k, fold := range folds {
		if len(fold.TrainIndices) == 0 || len(fold.TestIndices) == 0 {
			return nil, errors.NewTrainingDataInsufficientError("CrossValidator.Evaluate", f.Len(),
				fmt.Sprintf("fold %d is empty", k))
		}
		trainFrames[k] = f.Take(fold.TrainIndices)
		testFrames[k] = f.Take(fold.TestIndices)
	}

	res := &CVResult[P]{
		Params:      append([]P(nil), cv.Grid...),
		AvgMetrics:  make([]float64, len(cv.Grid)),
		FoldMetrics: make([][]float64, len(cv.Grid)),
	}
	for c := range res.FoldMetrics {
		res.FoldMetrics[c] = make([]float64, len(folds))
	}

	limit := cv.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	var fits atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for c, params := range cv.Grid {
		for k := range folds {
			g.Go(func() error {
				start := time.Now()
				metric, err := cv.cycle(gctx, params, trainFrames[k], testFrames[k])
				if err != nil {
					return errors.Wrapf(err, "candidate %d fold %d", c, k)
				}
				res.FoldMetrics[c][k] = metric
				fits.Add(1)
				logger.Debug("fold evaluated",
					log.CandidateKey, c,
					log.FoldKey, k,
					log.HyperParamsKey, fmt.Sprint(params),
					log.RMSEKey, metric,
				)
				if cv.OnFold != nil {
					cv.OnFold(c, k, metric, time.Since(start))
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.Fits = int(fits.Load())

	for c, fm := range res.FoldMetrics {
		var sum float64
		for _, m := range fm {
			sum += m
		}
		res.AvgMetrics[c] = sum / float64(len(fm))
		if c > 0 && cv.Evaluator.better(res.AvgMetrics[c], res.AvgMetrics[res.BestIndex]) {
			res.BestIndex = c
		}
	}
	logger.Info("cross-validation finished",
		log.NumFoldsKey, len(folds),
		log.AvgMetricsKey, res.AvgMetrics,
		log.CandidateKey, res.BestIndex,
		log.HyperParamsKey, fmt.Sprint(res.Best()),
	)
	return res, nil
}

func (cv *CrossValidator[P]) cycle(ctx context.Context, params P, train, test *pipeline.Frame) (metric float64, err error) {
	defer errors.Recover(&err, "CrossValidator.cycle")

	m, err := cv.Build(params).Fit(ctx, train)
	if err != nil {
		return 0, err
	}
	out, err := m.Transform(test)
	if err != nil {
		return 0, err
	}
	return cv.Evaluator.Evaluate(out)
}
