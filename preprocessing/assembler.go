package preprocessing

import (
	"context"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bikeshare/pipeline"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

// VectorAssembler concatenates float and vector columns into one vector
// column. Missing values in float columns are replaced by the column mean
// observed during Fit; a column that is entirely missing is filled with 0.
type VectorAssembler struct {
	InputCols []string
	OutputCol string
}

// NewVectorAssembler creates a VectorAssembler.
func NewVectorAssembler(inputCols []string, outputCol string) *VectorAssembler {
	return &VectorAssembler{InputCols: inputCols, OutputCol: outputCol}
}

// Fit records the schema of the inputs and the fill value of every float
// column.
func (a *VectorAssembler) Fit(_ context.Context, f *pipeline.Frame) (pipeline.Transformer, error) {
	if len(a.InputCols) == 0 {
		return nil, errors.NewValidationError("input_cols", "must not be empty", a.InputCols)
	}
	m := &VectorAssemblerModel{
		InputCols:  a.InputCols,
		OutputCol:  a.OutputCol,
		Widths:     make([]int, len(a.InputCols)),
		FillValues: make(map[string]float64),
	}
	for i, name := range a.InputCols {
		w, err := f.Width(name)
		if err != nil {
			return nil, err
		}
		m.Widths[i] = w

		if t, _ := f.Type(name); t != pipeline.FloatColumn {
			continue
		}
		values, _ := f.Floats(name)
		present := make([]float64, 0, len(values))
		for _, v := range values {
			if !pipeline.Null(v) {
				present = append(present, v)
			}
		}
		if len(present) > 0 {
			m.FillValues[name] = stat.Mean(present, nil)
		} else {
			m.FillValues[name] = 0
		}
	}
	return m, nil
}

// VectorAssemblerModel holds the persisted input schema and fill values.
type VectorAssemblerModel struct {
	InputCols  []string           `json:"input_cols"`
	OutputCol  string             `json:"output_col"`
	Widths     []int              `json:"widths"`
	FillValues map[string]float64 `json:"fill_values"`
}

// Kind implements pipeline.Transformer.
func (m *VectorAssemblerModel) Kind() string { return KindVectorAssembler }

// Width returns the length of the assembled vector.
func (m *VectorAssemblerModel) Width() int {
	total := 0
	for _, w := range m.Widths {
		total += w
	}
	return total
}

// Transform implements pipeline.Transformer.
func (m *VectorAssemblerModel) Transform(f *pipeline.Frame) (*pipeline.Frame, error) {
	n, width := f.Len(), m.Width()
	if n == 0 || width == 0 {
		return f.WithVector(m.OutputCol, nil)
	}

	out := mat.NewDense(n, width, nil)
	offset := 0
	for i, name := range m.InputCols {
		w, err := f.Width(name)
		if err != nil {
			return nil, err
		}
		if w != m.Widths[i] {
			return nil, errors.NewDimensionError("VectorAssemblerModel.Transform("+name+")", m.Widths[i], w, 1)
		}

		t, _ := f.Type(name)
		switch t {
		case pipeline.FloatColumn:
			values, _ := f.Floats(name)
			fill := m.FillValues[name]
			for r, v := range values {
				if pipeline.Null(v) {
					v = fill
				}
				out.Set(r, offset, v)
			}
		case pipeline.VectorColumn:
			v, _ := f.Vector(name)
			if v != nil {
				out.Slice(0, n, offset, offset+w).(*mat.Dense).Copy(v)
			}
		}
		offset += w
	}
	return f.WithVector(m.OutputCol, out)
}
