package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

// MaxBinsLimit is the largest supported bin count per feature.
const MaxBinsLimit = 256

// Binner discretises continuous features into at most MaxBins ordered bins.
// Bin b of feature f holds the values v with Thresholds[f][b-1] < v <=
// Thresholds[f][b], so a split "bin <= k" is the same test as
// "v <= Thresholds[f][k]".
type Binner struct {
	Thresholds [][]float64
	// bins[f][i] is the bin of row i for feature f.
	bins [][]uint8
	rows int
}

// NewBinner computes split thresholds for every column of X and bins its
// rows. Features with at most maxBins distinct values split between every
// pair of neighbours; otherwise thresholds sit at evenly spaced quantiles.
func NewBinner(X mat.Matrix, maxBins int) (*Binner, error) {
	if maxBins < 2 || maxBins > MaxBinsLimit {
		return nil, errors.NewValidationError("max_bins", "must be in [2, 256]", maxBins)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("NewBinner", "empty data", errors.ErrEmptyData)
	}

	b := &Binner{
		Thresholds: make([][]float64, c),
		bins:       make([][]uint8, c),
		rows:       r,
	}
	col := make([]float64, r)
	for f := 0; f < c; f++ {
		mat.Col(col, f, X)
		if err := errors.CheckFinite("NewBinner", col); err != nil {
			return nil, err
		}
		b.Thresholds[f] = thresholds(col, maxBins)

		bins := make([]uint8, r)
		for i, v := range col {
			bins[i] = uint8(binOf(b.Thresholds[f], v))
		}
		b.bins[f] = bins
	}
	return b, nil
}

// NumFeatures returns the number of binned columns.
func (b *Binner) NumFeatures() int {
	return len(b.Thresholds)
}

// NumRows returns the number of binned rows.
func (b *Binner) NumRows() int {
	return b.rows
}

// NumBins returns the number of bins of feature f.
func (b *Binner) NumBins(f int) int {
	return len(b.Thresholds[f]) + 1
}

func binOf(thresholds []float64, v float64) int {
	return sort.Search(len(thresholds), func(i int) bool { return thresholds[i] >= v })
}

func thresholds(col []float64, maxBins int) []float64 {
	sorted := append([]float64(nil), col...)
	sort.Float64s(sorted)

	distinct := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) <= 1 {
		return nil
	}

	var out []float64
	if len(distinct) <= maxBins {
		out = make([]float64, 0, len(distinct)-1)
		for i := 1; i < len(distinct); i++ {
			out = append(out, (distinct[i-1]+distinct[i])/2)
		}
		return out
	}

	n := len(sorted)
	for k := 1; k < maxBins; k++ {
		pos := k * n / maxBins
		if pos <= 0 || pos >= n {
			continue
		}
		// equal neighbours give a threshold on the value itself, so ties
		// stay in the left bin
		t := (sorted[pos-1] + sorted[pos]) / 2
		if len(out) == 0 || t > out[len(out)-1] {
			out = append(out, t)
		}
	}
	if len(out) > 0 && out[len(out)-1] >= sorted[n-1] {
		out = out[:len(out)-1]
	}
	return out
}
