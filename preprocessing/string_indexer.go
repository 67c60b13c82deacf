// Package preprocessing provides the fitted stages that turn FeatureRow
// columns into the numeric matrix the regressor consumes: categorical
// indexing, one-hot encoding, vector assembly and standardisation.
package preprocessing

import (
	"context"
	"sort"

	"github.com/YuminosukeSato/bikeshare/pipeline"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

// Stage kinds recorded in persisted artifacts.
const (
	KindStringIndexer   = "string_indexer"
	KindOneHotEncoder   = "one_hot_encoder"
	KindVectorAssembler = "vector_assembler"
	KindStandardScaler  = "standard_scaler"
)

func init() {
	pipeline.Register(KindStringIndexer, func() pipeline.Transformer { return &StringIndexerModel{} })
	pipeline.Register(KindOneHotEncoder, func() pipeline.Transformer { return &OneHotEncoderModel{} })
	pipeline.Register(KindVectorAssembler, func() pipeline.Transformer { return &VectorAssemblerModel{} })
	pipeline.Register(KindStandardScaler, func() pipeline.Transformer {
		return &ScalerModel{Scaler: NewStandardScalerDefault()}
	})
}

// HandleInvalid values for labels not seen during Fit.
const (
	// HandleInvalidError fails the transform.
	HandleInvalidError = "error"
	// HandleInvalidKeep maps unseen labels to index len(Labels).
	HandleInvalidKeep = "keep"
)

// StringIndexer maps a string column to label indices. The most frequent
// label gets index 0; equal frequencies are ordered alphabetically.
type StringIndexer struct {
	InputCol      string
	OutputCol     string
	HandleInvalid string
}

// NewStringIndexer creates a StringIndexer that rejects unseen labels.
func NewStringIndexer(inputCol, outputCol string) *StringIndexer {
	return &StringIndexer{InputCol: inputCol, OutputCol: outputCol, HandleInvalid: HandleInvalidError}
}

// Fit counts label frequencies.
func (s *StringIndexer) Fit(_ context.Context, f *pipeline.Frame) (pipeline.Transformer, error) {
	values, err := f.Strings(s.InputCol)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.NewModelError("StringIndexer.Fit", "empty data", errors.ErrEmptyData)
	}
	switch s.HandleInvalid {
	case HandleInvalidError, HandleInvalidKeep:
	default:
		return nil, errors.NewValidationError("handle_invalid", "must be error or keep", s.HandleInvalid)
	}

	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	labels := make([]string, 0, len(counts))
	for v := range counts {
		labels = append(labels, v)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	return &StringIndexerModel{
		InputCol:      s.InputCol,
		OutputCol:     s.OutputCol,
		HandleInvalid: s.HandleInvalid,
		Labels:        labels,
	}, nil
}

// StringIndexerModel holds the persisted label order.
type StringIndexerModel struct {
	InputCol      string   `json:"input_col"`
	OutputCol     string   `json:"output_col"`
	HandleInvalid string   `json:"handle_invalid"`
	Labels        []string `json:"labels"`
}

// Kind implements pipeline.Transformer.
func (m *StringIndexerModel) Kind() string { return KindStringIndexer }

// NumCategories returns the number of indices Transform can emit.
func (m *StringIndexerModel) NumCategories() int {
	if m.HandleInvalid == HandleInvalidKeep {
		return len(m.Labels) + 1
	}
	return len(m.Labels)
}

// Transform implements pipeline.Transformer.
func (m *StringIndexerModel) Transform(f *pipeline.Frame) (*pipeline.Frame, error) {
	values, err := f.Strings(m.InputCol)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(m.Labels))
	for i, l := range m.Labels {
		index[l] = i
	}

	out := make([]float64, len(values))
	for i, v := range values {
		idx, ok := index[v]
		if !ok {
			if m.HandleInvalid != HandleInvalidKeep {
				return nil, errors.NewValueError("StringIndexerModel.Transform", "unseen label "+v)
			}
			idx = len(m.Labels)
		}
		out[i] = float64(idx)
	}
	return f.WithFloats(m.OutputCol, out)
}
