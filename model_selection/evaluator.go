package model_selection

import (
	"github.com/YuminosukeSato/bikeshare/metrics"
	"github.com/YuminosukeSato/bikeshare/pipeline"
)

// RegressionEvaluator scores a transformed Frame by comparing its label
// and prediction columns.
type RegressionEvaluator struct {
	LabelCol      string
	PredictionCol string
	MetricName    string
}

// NewRegressionEvaluator returns an RMSE evaluator over labelCol and
// predictionCol.
func NewRegressionEvaluator(labelCol, predictionCol string) *RegressionEvaluator {
	return &RegressionEvaluator{
		LabelCol:      labelCol,
		PredictionCol: predictionCol,
		MetricName:    metrics.MetricRMSE,
	}
}

// Evaluate computes the metric on f.
func (e *RegressionEvaluator) Evaluate(f *pipeline.Frame) (float64, error) {
	y, err := f.Floats(e.LabelCol)
	if err != nil {
		return 0, err
	}
	pred, err := f.Floats(e.PredictionCol)
	if err != nil {
		return 0, err
	}
	return metrics.Evaluate(e.MetricName, y, pred)
}

// IsLargerBetter reports the direction of the metric.
func (e *RegressionEvaluator) IsLargerBetter() bool {
	return metrics.LargerIsBetter(e.MetricName)
}

// better reports whether a beats b. Equal values do not, so the earlier
// candidate keeps a tie.
func (e *RegressionEvaluator) better(a, b float64) bool {
	if e.IsLargerBetter() {
		return a > b
	}
	return a < b
}
