package ensemble

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikeshare/pipeline"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

// KindRandomForest is the persisted kind of a fitted forest stage.
const KindRandomForest = "random_forest_regressor"

func init() {
	pipeline.Register(KindRandomForest, func() pipeline.Transformer {
		return &ForestModel{Forest: NewRandomForestRegressor()}
	})
}

// ForestStage fits a RandomForestRegressor on a vector column and a float
// label column.
type ForestStage struct {
	FeaturesCol   string
	LabelCol      string
	PredictionCol string
	Options       []Option
}

// NewForestStage creates a forest stage configured by opts.
func NewForestStage(featuresCol, labelCol, predictionCol string, opts ...Option) *ForestStage {
	return &ForestStage{
		FeaturesCol:   featuresCol,
		LabelCol:      labelCol,
		PredictionCol: predictionCol,
		Options:       opts,
	}
}

// Fit implements pipeline.Estimator.
func (s *ForestStage) Fit(ctx context.Context, f *pipeline.Frame) (pipeline.Transformer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	X, err := f.Vector(s.FeaturesCol)
	if err != nil {
		return nil, err
	}
	if X == nil {
		return nil, errors.NewModelError("ForestStage.Fit", "empty feature vector", errors.ErrEmptyData)
	}
	labels, err := f.Floats(s.LabelCol)
	if err != nil {
		return nil, err
	}

	forest := NewRandomForestRegressor(s.Options...)
	if err := forest.Fit(X, mat.NewVecDense(len(labels), append([]float64(nil), labels...))); err != nil {
		return nil, err
	}
	return &ForestModel{FeaturesCol: s.FeaturesCol, PredictionCol: s.PredictionCol, Forest: forest}, nil
}

// ForestModel is a fitted forest stage.
type ForestModel struct {
	FeaturesCol   string                 `json:"features_col"`
	PredictionCol string                 `json:"prediction_col"`
	Forest        *RandomForestRegressor `json:"forest"`
}

// Kind implements pipeline.Transformer.
func (m *ForestModel) Kind() string { return KindRandomForest }

// Transform implements pipeline.Transformer.
func (m *ForestModel) Transform(f *pipeline.Frame) (*pipeline.Frame, error) {
	X, err := f.Vector(m.FeaturesCol)
	if err != nil {
		return nil, err
	}
	if X == nil {
		return f.WithFloats(m.PredictionCol, make([]float64, f.Len()))
	}
	pred, err := m.Forest.Predict(X)
	if err != nil {
		return nil, err
	}
	return f.WithFloats(m.PredictionCol, mat.Col(nil, 0, pred))
}
