package preprocessing

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikeshare/pipeline"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

// OneHotEncoder maps an index column to a binary vector column. With
// DropLast the last category is encoded as all zeros, so k categories
// yield k-1 columns.
type OneHotEncoder struct {
	InputCol  string
	OutputCol string
	DropLast  bool
}

// NewOneHotEncoder creates an encoder with DropLast enabled.
func NewOneHotEncoder(inputCol, outputCol string) *OneHotEncoder {
	return &OneHotEncoder{InputCol: inputCol, OutputCol: outputCol, DropLast: true}
}

// Fit learns the number of categories as the largest index plus one.
func (e *OneHotEncoder) Fit(_ context.Context, f *pipeline.Frame) (pipeline.Transformer, error) {
	idx, err := f.Floats(e.InputCol)
	if err != nil {
		return nil, err
	}
	if len(idx) == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	maxIdx := 0.0
	for _, v := range idx {
		if err := checkIndex("OneHotEncoder.Fit", v); err != nil {
			return nil, err
		}
		maxIdx = math.Max(maxIdx, v)
	}
	return &OneHotEncoderModel{
		InputCol:      e.InputCol,
		OutputCol:     e.OutputCol,
		DropLast:      e.DropLast,
		NumCategories: int(maxIdx) + 1,
	}, nil
}

// OneHotEncoderModel holds the persisted category count.
type OneHotEncoderModel struct {
	InputCol      string `json:"input_col"`
	OutputCol     string `json:"output_col"`
	DropLast      bool   `json:"drop_last"`
	NumCategories int    `json:"num_categories"`
}

// Kind implements pipeline.Transformer.
func (m *OneHotEncoderModel) Kind() string { return KindOneHotEncoder }

// Width returns the length of the encoded vector.
func (m *OneHotEncoderModel) Width() int {
	if m.DropLast {
		return m.NumCategories - 1
	}
	return m.NumCategories
}

// Transform implements pipeline.Transformer.
func (m *OneHotEncoderModel) Transform(f *pipeline.Frame) (*pipeline.Frame, error) {
	idx, err := f.Floats(m.InputCol)
	if err != nil {
		return nil, err
	}
	width := m.Width()
	if len(idx) == 0 || width == 0 {
		return f.WithVector(m.OutputCol, nil)
	}

	out := mat.NewDense(len(idx), width, nil)
	for i, v := range idx {
		if err := checkIndex("OneHotEncoderModel.Transform", v); err != nil {
			return nil, err
		}
		c := int(v)
		if c >= m.NumCategories {
			return nil, errors.NewValueError("OneHotEncoderModel.Transform", "category index out of range")
		}
		if c < width {
			out.Set(i, c, 1)
		}
	}
	return f.WithVector(m.OutputCol, out)
}

func checkIndex(op string, v float64) error {
	if v < 0 || v != math.Trunc(v) || math.IsInf(v, 0) {
		return errors.NewValueError(op, "category index must be a non-negative integer")
	}
	return nil
}
