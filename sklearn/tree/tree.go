// Package tree implements a histogram-based CART regression tree.
//
// Features are discretised once by a Binner; split search then works on
// per-bin sums of (weight, weight*y, weight*y^2), which keeps a split
// evaluation independent of the number of distinct values. Random forests
// share one Binner across all of their trees.
package tree

import (
	"math"
	"math/rand/v2"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikeshare/core/model"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

var _ model.Regressor = (*DecisionTreeRegressor)(nil)

// Feature subset strategies evaluated at each node.
const (
	FeatureSubsetAll      = "all"
	FeatureSubsetOneThird = "onethird"
	FeatureSubsetSqrt     = "sqrt"
	FeatureSubsetLog2     = "log2"
)

// minGain is the smallest variance reduction accepted as a split.
const minGain = 1e-12

// Node is a tree node. Leaves have nil children.
type Node struct {
	Feature    int     `json:"feature"`
	Threshold  float64 `json:"threshold"`
	Prediction float64 `json:"prediction"`
	Impurity   float64 `json:"impurity"`
	Weight     float64 `json:"weight"`
	Left       *Node   `json:"left,omitempty"`
	Right      *Node   `json:"right,omitempty"`
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return n.Left == nil
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth sets the maximum depth. Depth 0 is a single leaf.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) { t.MaxDepth = depth }
}

// WithMaxBins sets the number of bins per feature.
func WithMaxBins(bins int) Option {
	return func(t *DecisionTreeRegressor) { t.MaxBins = bins }
}

// WithMinInstancesPerNode sets the minimum weighted row count of a child.
func WithMinInstancesPerNode(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinInstancesPerNode = n }
}

// WithFeatureSubset sets the per-node feature sampling strategy.
func WithFeatureSubset(strategy string) Option {
	return func(t *DecisionTreeRegressor) { t.FeatureSubset = strategy }
}

// WithRandomState seeds feature sampling.
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeRegressor) { t.RandomState = seed }
}

// DecisionTreeRegressor is a variance-reduction regression tree.
type DecisionTreeRegressor struct {
	state *model.StateManager

	MaxDepth            int
	MaxBins             int
	MinInstancesPerNode int
	FeatureSubset       string
	RandomState         uint64

	Root *Node
}

// NewDecisionTreeRegressor creates a tree with depth 5, 32 bins, no
// feature sampling and one instance per node.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		state:               model.NewStateManager(),
		MaxDepth:            5,
		MaxBins:             32,
		MinInstancesPerNode: 1,
		FeatureSubset:       FeatureSubsetAll,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsFitted returns whether the tree has been fitted.
func (t *DecisionTreeRegressor) IsFitted() bool {
	return t.state.IsFitted()
}

func (t *DecisionTreeRegressor) validate() error {
	if t.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", t.MaxDepth)
	}
	if t.MinInstancesPerNode < 1 {
		return errors.NewValidationError("min_instances_per_node", "must be >= 1", t.MinInstancesPerNode)
	}
	switch t.FeatureSubset {
	case FeatureSubsetAll, FeatureSubsetOneThird, FeatureSubsetSqrt, FeatureSubsetLog2:
	default:
		return errors.NewValidationError("feature_subset", "unknown strategy", t.FeatureSubset)
	}
	return nil
}

// Fit grows the tree on X and the column vector y.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	r, _ := X.Dims()
	yr, yc := y.Dims()
	if yr != r || yc != 1 {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", r, yr, 0)
	}
	b, err := NewBinner(X, t.MaxBins)
	if err != nil {
		return err
	}
	labels := mat.Col(nil, 0, y)
	weights := make([]float64, r)
	for i := range weights {
		weights[i] = 1
	}
	return t.FitBinned(b, labels, weights)
}

// FitBinned grows the tree on pre-binned features. weights[i] is the
// multiplicity of row i; rows with weight 0 are ignored.
func (t *DecisionTreeRegressor) FitBinned(b *Binner, y, weights []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.FitBinned")

	if err := t.validate(); err != nil {
		return err
	}
	if len(y) != b.NumRows() || len(weights) != b.NumRows() {
		return errors.NewDimensionError("DecisionTreeRegressor.FitBinned", b.NumRows(), len(y), 0)
	}
	if err := errors.CheckFinite("DecisionTreeRegressor.FitBinned", y); err != nil {
		return err
	}

	rows := make([]int, 0, len(y))
	for i, w := range weights {
		if w > 0 {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.FitBinned", "empty data", errors.ErrEmptyData)
	}

	g := &grower{
		tree:    t,
		binner:  b,
		y:       y,
		w:       weights,
		rng:     rand.New(rand.NewPCG(t.RandomState, t.RandomState^0x9e3779b97f4a7c15)),
		perNode: featuresPerNode(t.FeatureSubset, b.NumFeatures()),
	}
	t.Root = g.grow(rows, 0)
	t.state.SetFitted(b.NumFeatures(), len(rows))
	return nil
}

// Predict returns an n×1 matrix of predictions.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := t.state.RequireFeatures("DecisionTreeRegressor.Predict", c); err != nil {
		return nil, err
	}
	out := mat.NewVecDense(r, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.SetVec(i, t.PredictRow(row))
	}
	return out, nil
}

// PredictRow evaluates the tree on one feature vector. The tree must be
// fitted.
func (t *DecisionTreeRegressor) PredictRow(x []float64) float64 {
	n := t.Root
	for !n.IsLeaf() {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Prediction
}

// Depth returns the depth of the fitted tree.
func (t *DecisionTreeRegressor) Depth() int {
	return depth(t.Root)
}

// NumNodes returns the number of nodes of the fitted tree.
func (t *DecisionTreeRegressor) NumNodes() int {
	return count(t.Root)
}

func depth(n *Node) int {
	if n == nil || n.IsLeaf() {
		return 0
	}
	return 1 + max(depth(n.Left), depth(n.Right))
}

func count(n *Node) int {
	if n == nil {
		return 0
	}
	return 1 + count(n.Left) + count(n.Right)
}

type treeJSON struct {
	MaxDepth            int              `json:"max_depth"`
	MaxBins             int              `json:"max_bins"`
	MinInstancesPerNode int              `json:"min_instances_per_node"`
	FeatureSubset       string           `json:"feature_subset"`
	RandomState         uint64           `json:"random_state"`
	State               model.ModelState `json:"state"`
	Root                *Node            `json:"root"`
}

// MarshalJSON encodes the parameters and the fitted nodes.
func (t *DecisionTreeRegressor) MarshalJSON() ([]byte, error) {
	return json.Marshal(treeJSON{
		MaxDepth:            t.MaxDepth,
		MaxBins:             t.MaxBins,
		MinInstancesPerNode: t.MinInstancesPerNode,
		FeatureSubset:       t.FeatureSubset,
		RandomState:         t.RandomState,
		State:               t.state.State(),
		Root:                t.Root,
	})
}

// UnmarshalJSON restores a tree written by MarshalJSON.
func (t *DecisionTreeRegressor) UnmarshalJSON(data []byte) error {
	var v treeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.State.Fitted && v.Root == nil {
		return errors.NewModelError("DecisionTreeRegressor.UnmarshalJSON", "fitted tree without nodes", nil)
	}
	t.MaxDepth, t.MaxBins, t.MinInstancesPerNode = v.MaxDepth, v.MaxBins, v.MinInstancesPerNode
	t.FeatureSubset, t.RandomState, t.Root = v.FeatureSubset, v.RandomState, v.Root
	if t.state == nil {
		t.state = model.NewStateManager()
	}
	t.state.SetState(v.State)
	return nil
}

func featuresPerNode(strategy string, n int) int {
	var k int
	switch strategy {
	case FeatureSubsetOneThird:
		k = int(math.Ceil(float64(n) / 3))
	case FeatureSubsetSqrt:
		k = int(math.Ceil(math.Sqrt(float64(n))))
	case FeatureSubsetLog2:
		k = int(math.Ceil(math.Log2(float64(n))))
	default:
		k = n
	}
	return min(max(k, 1), n)
}
