// Package metrics provides regression error metrics over label and
// prediction columns.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

func check(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := check("MSE", yTrue, yPred); err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	d := floats.Distance(yTrue, yPred, 2)
	return d * d / float64(len(yTrue)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := check("MAE", yTrue, yPred); err != nil {
		return 0, err
	}
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue)), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := check("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	mean := stat.Mean(yTrue, nil)
	var tss, rss float64
	for i, v := range yTrue {
		tss += (v - mean) * (v - mean)
		rss += (v - yPred[i]) * (v - yPred[i])
	}
	// 全変動が0の場合（すべてのyTrueが同じ値）
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// Metric names understood by Evaluate.
const (
	MetricRMSE = "rmse"
	MetricMSE  = "mse"
	MetricMAE  = "mae"
	MetricR2   = "r2"
)

// Evaluate computes the metric called name.
func Evaluate(name string, yTrue, yPred []float64) (float64, error) {
	switch name {
	case MetricRMSE:
		return RMSE(yTrue, yPred)
	case MetricMSE:
		return MSE(yTrue, yPred)
	case MetricMAE:
		return MAE(yTrue, yPred)
	case MetricR2:
		return R2Score(yTrue, yPred)
	default:
		return 0, errors.NewValidationError("metric", "unknown metric", name)
	}
}

// LargerIsBetter reports whether a higher value of metric name is better.
func LargerIsBetter(name string) bool {
	return name == MetricR2
}
