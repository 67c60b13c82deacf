// Package model_selection provides the train/test split, k-fold splitting
// and cross-validated grid search used to choose the forest
// hyperparameters.
package model_selection

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/bikeshare/pipeline"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

// SplitIndices assigns every row in [0, n) to the training side with
// probability trainRatio, independently per row. The assignment is fully
// determined by seed.
func SplitIndices(n int, trainRatio float64, seed uint64) (train, test []int) {
	r := rand.New(rand.NewPCG(seed, seed))
	train = make([]int, 0, int(float64(n)*trainRatio)+1)
	test = make([]int, 0, n-cap(train)+1)
	for i := 0; i < n; i++ {
		if r.Float64() < trainRatio {
			train = append(train, i)
		} else {
			test = append(test, i)
		}
	}
	return train, test
}

// TrainTestSplit splits f into a training and a test Frame with a
// per-row Bernoulli draw. Either side ending up empty is reported as
// ErrTrainingDataInsufficient.
func TrainTestSplit(f *pipeline.Frame, trainRatio float64, seed uint64) (train, test *pipeline.Frame, err error) {
	if trainRatio <= 0 || trainRatio >= 1 {
		return nil, nil, errors.NewValidationError("train_ratio", "must be in (0, 1)", trainRatio)
	}
	if f.Len() == 0 {
		return nil, nil, errors.NewTrainingDataInsufficientError("TrainTestSplit", 0, "empty feature table")
	}
	trainIdx, testIdx := SplitIndices(f.Len(), trainRatio, seed)
	if len(trainIdx) == 0 {
		return nil, nil, errors.NewTrainingDataInsufficientError("TrainTestSplit", f.Len(), "training split is empty")
	}
	if len(testIdx) == 0 {
		return nil, nil, errors.NewTrainingDataInsufficientError("TrainTestSplit", f.Len(), "test split is empty")
	}
	return f.Take(trainIdx), f.Take(testIdx), nil
}
