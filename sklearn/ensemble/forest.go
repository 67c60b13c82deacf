// Package ensemble provides a random forest regressor built from
// sklearn/tree and the pipeline stage that wraps it.
package ensemble

import (
	"fmt"
	"math/rand/v2"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikeshare/core/model"
	"github.com/YuminosukeSato/bikeshare/core/parallel"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
	"github.com/YuminosukeSato/bikeshare/sklearn/tree"
)

var _ model.Regressor = (*RandomForestRegressor)(nil)

// ForestParams are the hyperparameters searched by cross-validation.
type ForestParams struct {
	MaxDepth int `json:"max_depth" koanf:"max_depth" validate:"min=1,max=30"`
	NumTrees int `json:"num_trees" koanf:"num_trees" validate:"min=1,max=1000"`
}

func (p ForestParams) String() string {
	return fmt.Sprintf("maxDepth=%d numTrees=%d", p.MaxDepth, p.NumTrees)
}

// DefaultGrid returns the candidate grid maxDepth {3, 5} x numTrees {50, 100}
// in search order.
func DefaultGrid() []ForestParams {
	return []ForestParams{
		{MaxDepth: 3, NumTrees: 50},
		{MaxDepth: 3, NumTrees: 100},
		{MaxDepth: 5, NumTrees: 50},
		{MaxDepth: 5, NumTrees: 100},
	}
}

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithParams sets depth and tree count.
func WithParams(p ForestParams) Option {
	return func(f *RandomForestRegressor) { f.Params = p }
}

// WithMaxBins sets the number of bins per feature.
func WithMaxBins(n int) Option {
	return func(f *RandomForestRegressor) { f.MaxBins = n }
}

// WithFeatureSubset sets the per-node feature sampling strategy.
func WithFeatureSubset(s string) Option {
	return func(f *RandomForestRegressor) { f.FeatureSubset = s }
}

// WithBootstrap enables or disables sampling rows with replacement.
func WithBootstrap(b bool) Option {
	return func(f *RandomForestRegressor) { f.Bootstrap = b }
}

// WithSeed seeds bootstrap sampling and feature selection.
func WithSeed(seed uint64) Option {
	return func(f *RandomForestRegressor) { f.Seed = seed }
}

// WithWorkers bounds the number of trees grown at once. 0 uses every CPU.
func WithWorkers(n int) Option {
	return func(f *RandomForestRegressor) { f.Workers = n }
}

// RandomForestRegressor averages the predictions of independently grown
// regression trees. Tree i derives its randomness from Seed and i only, so
// results do not depend on Workers.
type RandomForestRegressor struct {
	state *model.StateManager

	Params              ForestParams
	MaxBins             int
	MinInstancesPerNode int
	FeatureSubset       string
	Bootstrap           bool
	Seed                uint64
	Workers             int

	Trees []*tree.DecisionTreeRegressor
}

// NewRandomForestRegressor creates a forest of 20 depth-5 trees with 32
// bins, bootstrap sampling and one third of the features per node.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		state:               model.NewStateManager(),
		Params:              ForestParams{MaxDepth: 5, NumTrees: 20},
		MaxBins:             32,
		MinInstancesPerNode: 1,
		FeatureSubset:       tree.FeatureSubsetOneThird,
		Bootstrap:           true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsFitted returns whether the forest has been fitted.
func (f *RandomForestRegressor) IsFitted() bool {
	return f.state.IsFitted()
}

// Fit grows Params.NumTrees trees in parallel on X and the column vector y.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if f.Params.NumTrees < 1 {
		return errors.NewValidationError("num_trees", "must be >= 1", f.Params.NumTrees)
	}
	r, _ := X.Dims()
	yr, yc := y.Dims()
	if yr != r || yc != 1 {
		return errors.NewDimensionError("RandomForestRegressor.Fit", r, yr, 0)
	}
	binner, err := tree.NewBinner(X, f.MaxBins)
	if err != nil {
		return err
	}
	labels := mat.Col(nil, 0, y)

	trees := make([]*tree.DecisionTreeRegressor, f.Params.NumTrees)
	err = parallel.ForEach(len(trees), f.Workers, func(i int) error {
		return errors.SafeExecute(fmt.Sprintf("tree %d", i), func() error {
			seed := f.Seed + uint64(i)*0x9e3779b97f4a7c15
			t := tree.NewDecisionTreeRegressor(
				tree.WithMaxDepth(f.Params.MaxDepth),
				tree.WithMaxBins(f.MaxBins),
				tree.WithMinInstancesPerNode(f.MinInstancesPerNode),
				tree.WithFeatureSubset(f.FeatureSubset),
				tree.WithRandomState(seed),
			)
			if err := t.FitBinned(binner, labels, f.sampleWeights(r, seed)); err != nil {
				return err
			}
			trees[i] = t
			return nil
		})
	})
	if err != nil {
		return err
	}

	f.Trees = trees
	f.state.SetFitted(binner.NumFeatures(), r)
	return nil
}

// sampleWeights draws n rows with replacement and returns how often each
// row was drawn. Without bootstrap every row has weight 1.
func (f *RandomForestRegressor) sampleWeights(n int, seed uint64) []float64 {
	w := make([]float64, n)
	if !f.Bootstrap {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	rng := rand.New(rand.NewPCG(seed, ^seed))
	for k := 0; k < n; k++ {
		w[rng.IntN(n)]++
	}
	return w
}

// Predict returns the mean tree prediction for every row as an n×1 matrix.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := f.state.RequireFeatures("RandomForestRegressor.Predict", c); err != nil {
		return nil, err
	}

	out := mat.NewVecDense(r, nil)
	parallel.ParallelizeWithThreshold(r, 1024, f.Workers, func(start, end int) {
		row := make([]float64, c)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			sum := 0.0
			for _, t := range f.Trees {
				sum += t.PredictRow(row)
			}
			out.SetVec(i, sum/float64(len(f.Trees)))
		}
	})
	return out, nil
}

type forestJSON struct {
	Params              ForestParams                  `json:"params"`
	MaxBins             int                           `json:"max_bins"`
	MinInstancesPerNode int                           `json:"min_instances_per_node"`
	FeatureSubset       string                        `json:"feature_subset"`
	Bootstrap           bool                          `json:"bootstrap"`
	Seed                uint64                        `json:"seed"`
	State               model.ModelState              `json:"state"`
	Trees               []*tree.DecisionTreeRegressor `json:"trees"`
}

// MarshalJSON encodes the parameters and every fitted tree.
func (f *RandomForestRegressor) MarshalJSON() ([]byte, error) {
	return json.Marshal(forestJSON{
		Params:              f.Params,
		MaxBins:             f.MaxBins,
		MinInstancesPerNode: f.MinInstancesPerNode,
		FeatureSubset:       f.FeatureSubset,
		Bootstrap:           f.Bootstrap,
		Seed:                f.Seed,
		State:               f.state.State(),
		Trees:               f.Trees,
	})
}

// UnmarshalJSON restores a forest written by MarshalJSON.
func (f *RandomForestRegressor) UnmarshalJSON(data []byte) error {
	var v forestJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.State.Fitted && len(v.Trees) == 0 {
		return errors.NewModelError("RandomForestRegressor.UnmarshalJSON", "fitted forest without trees", nil)
	}
	f.Params, f.MaxBins, f.MinInstancesPerNode = v.Params, v.MaxBins, v.MinInstancesPerNode
	f.FeatureSubset, f.Bootstrap, f.Seed, f.Trees = v.FeatureSubset, v.Bootstrap, v.Seed, v.Trees
	if f.state == nil {
		f.state = model.NewStateManager()
	}
	f.state.SetState(v.State)
	return nil
}
