package preprocessing

import (
	"context"
	"math"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bikeshare/core/model"
	"github.com/YuminosukeSato/bikeshare/pipeline"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

var _ model.Transformer = (*StandardScaler)(nil)

// StandardScaler は各特徴量を平均0、標準偏差1に変換する
//
// 標準偏差は不偏分散から求める。分散が0の列はスケール1として扱う。
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64
	// Scale は各特徴量の標準偏差
	Scale []float64

	// WithMean は平均を引くかどうか
	WithMean bool
	// WithStd は標準偏差で割るかどうか
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault は平均除去・分散正規化の両方を行うStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// IsFitted は学習済みかどうかを返す
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// Dimensions は学習時の特徴量数とサンプル数を返す
func (s *StandardScaler) Dimensions() (nFeatures, nSamples int) {
	return s.state.Dimensions()
}

// Fit は訓練データから平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
	defer errors.Recover(&err, "StandardScaler.Fit")

	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		if err := errors.CheckFinite("StandardScaler.Fit", col); err != nil {
			return err
		}
		mean, std := stat.MeanStdDev(col, nil)
		if r < 2 {
			std = 0
		}

		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1.0
		if s.WithStd && math.Abs(std) >= 1e-8 {
			s.Scale[j] = std
		}
	}

	s.state.SetFitted(c, r)
	return nil
}

// Transform は学習した統計量でデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler.Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform はFitとTransformを同時に実行する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler.InverseTransform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(_, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

type scalerJSON struct {
	Mean     []float64        `json:"mean"`
	Scale    []float64        `json:"scale"`
	WithMean bool             `json:"with_mean"`
	WithStd  bool             `json:"with_std"`
	State    model.ModelState `json:"state"`
}

// MarshalJSON は学習済みの統計量をJSONに変換する
func (s *StandardScaler) MarshalJSON() ([]byte, error) {
	return json.Marshal(scalerJSON{
		Mean:     s.Mean,
		Scale:    s.Scale,
		WithMean: s.WithMean,
		WithStd:  s.WithStd,
		State:    s.state.State(),
	})
}

// UnmarshalJSON はMarshalJSONの出力から状態を復元する
func (s *StandardScaler) UnmarshalJSON(data []byte) error {
	var v scalerJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v.Mean) != v.State.NFeatures || len(v.Scale) != v.State.NFeatures {
		return errors.NewDimensionError("StandardScaler.UnmarshalJSON", v.State.NFeatures, len(v.Scale), 1)
	}
	s.Mean, s.Scale = v.Mean, v.Scale
	s.WithMean, s.WithStd = v.WithMean, v.WithStd
	if s.state == nil {
		s.state = model.NewStateManager()
	}
	s.state.SetState(v.State)
	return nil
}

// ScalerStage は StandardScaler をパイプラインのステージとして使うためのEstimator
type ScalerStage struct {
	InputCol  string
	OutputCol string
	WithMean  bool
	WithStd   bool
}

// NewScalerStage は平均除去・分散正規化を行うステージを作成する
func NewScalerStage(inputCol, outputCol string) *ScalerStage {
	return &ScalerStage{InputCol: inputCol, OutputCol: outputCol, WithMean: true, WithStd: true}
}

// Fit は入力ベクトル列から統計量を学習する
func (st *ScalerStage) Fit(_ context.Context, f *pipeline.Frame) (pipeline.Transformer, error) {
	X, err := f.Vector(st.InputCol)
	if err != nil {
		return nil, err
	}
	if X == nil {
		return nil, errors.NewModelError("ScalerStage.Fit", "empty data", errors.ErrEmptyData)
	}
	scaler := NewStandardScaler(st.WithMean, st.WithStd)
	if err := scaler.Fit(X); err != nil {
		return nil, err
	}
	return &ScalerModel{InputCol: st.InputCol, OutputCol: st.OutputCol, Scaler: scaler}, nil
}

// ScalerModel は学習済みのスケーラーステージ
type ScalerModel struct {
	InputCol  string          `json:"input_col"`
	OutputCol string          `json:"output_col"`
	Scaler    *StandardScaler `json:"scaler"`
}

// Kind implements pipeline.Transformer.
func (m *ScalerModel) Kind() string { return KindStandardScaler }

// Transform implements pipeline.Transformer.
func (m *ScalerModel) Transform(f *pipeline.Frame) (*pipeline.Frame, error) {
	X, err := f.Vector(m.InputCol)
	if err != nil {
		return nil, err
	}
	if X == nil {
		return f.WithVector(m.OutputCol, nil)
	}
	scaled, err := m.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return f.WithVector(m.OutputCol, scaled.(*mat.Dense))
}
