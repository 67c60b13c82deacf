// Package pipeline provides the columnar Frame that flows through an
// ordered chain of stages, and the Pipeline / Model types that fit and
// apply that chain.
package pipeline

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

// ColumnType identifies the storage of a Frame column.
type ColumnType int

const (
	// StringColumn holds categorical text.
	StringColumn ColumnType = iota
	// FloatColumn holds one number per row. NaN marks a missing value.
	FloatColumn
	// VectorColumn holds a fixed-width numeric vector per row.
	VectorColumn
)

// Frame is an immutable set of equally long named columns. With* methods
// return a new Frame sharing the unchanged columns; column data is never
// written after it has been added, so Frames may be read concurrently.
type Frame struct {
	n       int
	types   map[string]ColumnType
	strings map[string][]string
	floats  map[string][]float64
	vectors map[string]*mat.Dense
}

// NewFrame creates an empty Frame of n rows.
func NewFrame(n int) *Frame {
	return &Frame{
		n:       n,
		types:   map[string]ColumnType{},
		strings: map[string][]string{},
		floats:  map[string][]float64{},
		vectors: map[string]*mat.Dense{},
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return f.n
}

// Columns returns the column names, sorted.
func (f *Frame) Columns() []string {
	names := make([]string, 0, len(f.types))
	for name := range f.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Type returns the type of column name.
func (f *Frame) Type(name string) (ColumnType, bool) {
	t, ok := f.types[name]
	return t, ok
}

func (f *Frame) clone() *Frame {
	c := NewFrame(f.n)
	for k, v := range f.types {
		c.types[k] = v
	}
	for k, v := range f.strings {
		c.strings[k] = v
	}
	for k, v := range f.floats {
		c.floats[k] = v
	}
	for k, v := range f.vectors {
		c.vectors[k] = v
	}
	return c
}

func (f *Frame) checkLen(op string, got int) error {
	if got != f.n {
		return errors.NewDimensionError(op, f.n, got, 0)
	}
	return nil
}

func (f *Frame) drop(name string) {
	delete(f.strings, name)
	delete(f.floats, name)
	delete(f.vectors, name)
	delete(f.types, name)
}

// WithStrings returns a Frame with column name set to values.
func (f *Frame) WithStrings(name string, values []string) (*Frame, error) {
	if err := f.checkLen("Frame.WithStrings", len(values)); err != nil {
		return nil, err
	}
	c := f.clone()
	c.drop(name)
	c.types[name] = StringColumn
	c.strings[name] = values
	return c, nil
}

// WithFloats returns a Frame with column name set to values.
func (f *Frame) WithFloats(name string, values []float64) (*Frame, error) {
	if err := f.checkLen("Frame.WithFloats", len(values)); err != nil {
		return nil, err
	}
	c := f.clone()
	c.drop(name)
	c.types[name] = FloatColumn
	c.floats[name] = values
	return c, nil
}

// WithVector returns a Frame with column name set to the rows of m. A nil m
// is a zero-width column (or any column of a zero-row Frame).
func (f *Frame) WithVector(name string, m *mat.Dense) (*Frame, error) {
	if m != nil {
		r, _ := m.Dims()
		if err := f.checkLen("Frame.WithVector", r); err != nil {
			return nil, err
		}
	}
	c := f.clone()
	c.drop(name)
	c.types[name] = VectorColumn
	c.vectors[name] = m
	return c, nil
}

// Strings returns column name. The slice must not be modified.
func (f *Frame) Strings(name string) ([]string, error) {
	v, ok := f.strings[name]
	if !ok {
		return nil, missingColumn(name, "string")
	}
	return v, nil
}

// Floats returns column name. The slice must not be modified.
func (f *Frame) Floats(name string) ([]float64, error) {
	v, ok := f.floats[name]
	if !ok {
		return nil, missingColumn(name, "float")
	}
	return v, nil
}

// Vector returns column name as an n×width matrix, nil when the column has
// no values. The matrix must not be modified.
func (f *Frame) Vector(name string) (*mat.Dense, error) {
	v, ok := f.vectors[name]
	if !ok {
		return nil, missingColumn(name, "vector")
	}
	return v, nil
}

// Width returns the number of values column name contributes per row.
func (f *Frame) Width(name string) (int, error) {
	switch f.types[name] {
	case FloatColumn:
		if _, ok := f.floats[name]; ok {
			return 1, nil
		}
	case VectorColumn:
		if m, ok := f.vectors[name]; ok {
			if m == nil {
				return 0, nil
			}
			_, c := m.Dims()
			return c, nil
		}
	}
	return 0, missingColumn(name, "numeric")
}

// Take returns a Frame holding the rows at idx, in that order.
func (f *Frame) Take(idx []int) *Frame {
	out := NewFrame(len(idx))
	for name, t := range f.types {
		out.types[name] = t
	}
	for name, col := range f.strings {
		v := make([]string, len(idx))
		for i, j := range idx {
			v[i] = col[j]
		}
		out.strings[name] = v
	}
	for name, col := range f.floats {
		v := make([]float64, len(idx))
		for i, j := range idx {
			v[i] = col[j]
		}
		out.floats[name] = v
	}
	for name, m := range f.vectors {
		if m == nil || len(idx) == 0 {
			out.vectors[name] = nil
			continue
		}
		_, w := m.Dims()
		d := mat.NewDense(len(idx), w, nil)
		for i, j := range idx {
			d.SetRow(i, m.RawRowView(j))
		}
		out.vectors[name] = d
	}
	return out
}

// Null reports whether v is the missing-value marker of a float column.
func Null(v float64) bool {
	return math.IsNaN(v)
}

// NullValue returns the missing-value marker.
func NullValue() float64 {
	return math.NaN()
}

func missingColumn(name, kind string) error {
	return errors.NewValidationError("column", "no "+kind+" column with this name", name)
}
