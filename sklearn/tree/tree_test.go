package tree

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
)

// TestDecisionTreeRegressor_FitPredict_Step tests a step function that a
// single split separates
func TestDecisionTreeRegressor_FitPredict_Step(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 5,
		1, 3,
		2, 9,
		3, 1,
		10, 4,
		11, 8,
		12, 2,
		13, 7,
	})
	y := mat.NewDense(8, 1, []float64{1, 1, 1, 1, 5, 5, 5, 5})

	dt := NewDecisionTreeRegressor(WithMaxDepth(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	if dt.Root.Feature != 0 {
		t.Errorf("root split feature = %d, want 0", dt.Root.Feature)
	}
	if dt.Root.Threshold <= 3 || dt.Root.Threshold >= 10 {
		t.Errorf("root threshold = %v, want between 3 and 10", dt.Root.Threshold)
	}
	if dt.Depth() != 1 {
		t.Errorf("depth = %d, want 1 (pure children are leaves)", dt.Depth())
	}

	pred, err := dt.Predict(mat.NewDense(2, 2, []float64{2.5, 0, 12.5, 0}))
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if pred.At(0, 0) != 1 || pred.At(1, 0) != 5 {
		t.Errorf("predictions = [%v %v], want [1 5]", pred.At(0, 0), pred.At(1, 0))
	}
}

// TestDecisionTreeRegressor_MaxDepth tests that depth is bounded
func TestDecisionTreeRegressor_MaxDepth(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	n := 200
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			X.Set(i, j, r.Float64())
		}
		y.Set(i, 0, math.Sin(6*X.At(i, 0))+X.At(i, 1))
	}

	for _, depth := range []int{0, 1, 3, 5} {
		dt := NewDecisionTreeRegressor(WithMaxDepth(depth))
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("depth %d: %v", depth, err)
		}
		if got := dt.Depth(); got > depth {
			t.Errorf("depth %d: tree depth %d", depth, got)
		}
		if depth == 5 && dt.NumNodes() > 63 {
			t.Errorf("depth 5 tree has %d nodes", dt.NumNodes())
		}
	}

	leaf := NewDecisionTreeRegressor(WithMaxDepth(0))
	_ = leaf.Fit(X, y)
	mean := mat.Sum(y) / float64(n)
	if math.Abs(leaf.Root.Prediction-mean) > 1e-12 {
		t.Errorf("depth 0 prediction = %v, want mean %v", leaf.Root.Prediction, mean)
	}
}

// TestDecisionTreeRegressor_DeeperIsBetter tests that training error does
// not increase with depth
func TestDecisionTreeRegressor_DeeperIsBetter(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	n := 300
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b := r.Float64()*10, r.Float64()*10
		X.SetRow(i, []float64{a, b})
		y.Set(i, 0, a*a+b)
	}

	prev := math.Inf(1)
	for _, depth := range []int{1, 3, 5} {
		dt := NewDecisionTreeRegressor(WithMaxDepth(depth))
		if err := dt.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		pred, _ := dt.Predict(X)
		mse := 0.0
		for i := 0; i < n; i++ {
			d := pred.At(i, 0) - y.At(i, 0)
			mse += d * d
		}
		if mse > prev+1e-9 {
			t.Errorf("depth %d: mse %v greater than shallower tree %v", depth, mse, prev)
		}
		prev = mse
	}
}

// TestDecisionTreeRegressor_Weights tests that zero-weight rows are ignored
func TestDecisionTreeRegressor_Weights(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	b, err := NewBinner(X, 32)
	if err != nil {
		t.Fatal(err)
	}
	y := []float64{1, 1, 100, 100}

	dt := NewDecisionTreeRegressor(WithMaxDepth(0))
	if err := dt.FitBinned(b, y, []float64{1, 3, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if dt.Root.Prediction != 1 {
		t.Errorf("prediction = %v, want 1", dt.Root.Prediction)
	}
	if dt.Root.Weight != 4 {
		t.Errorf("weight = %v, want 4", dt.Root.Weight)
	}

	if err := dt.FitBinned(b, y, []float64{0, 0, 0, 0}); err == nil {
		t.Error("expected error for all-zero weights")
	}
}

// TestDecisionTreeRegressor_MinInstances tests the child size constraint
func TestDecisionTreeRegressor_MinInstances(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 3, 100})
	y := mat.NewDense(5, 1, []float64{0, 0, 0, 0, 50})

	dt := NewDecisionTreeRegressor(WithMaxDepth(1), WithMinInstancesPerNode(2))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if !dt.Root.IsLeaf() && (dt.Root.Left.Weight < 2 || dt.Root.Right.Weight < 2) {
		t.Errorf("child weights %v/%v below minimum", dt.Root.Left.Weight, dt.Root.Right.Weight)
	}
}

// TestDecisionTreeRegressor_FeatureSubset tests per-node feature sampling
func TestDecisionTreeRegressor_FeatureSubset(t *testing.T) {
	tests := []struct {
		strategy string
		n, want  int
	}{
		{FeatureSubsetAll, 13, 13},
		{FeatureSubsetOneThird, 13, 5},
		{FeatureSubsetOneThird, 2, 1},
		{FeatureSubsetSqrt, 13, 4},
		{FeatureSubsetLog2, 13, 4},
		{FeatureSubsetLog2, 1, 1},
	}
	for _, tt := range tests {
		if got := featuresPerNode(tt.strategy, tt.n); got != tt.want {
			t.Errorf("featuresPerNode(%s, %d) = %d, want %d", tt.strategy, tt.n, got, tt.want)
		}
	}

	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	if err := NewDecisionTreeRegressor(WithFeatureSubset("half")).Fit(X, y); err == nil {
		t.Error("expected validation error for unknown strategy")
	}
}

// TestDecisionTreeRegressor_NotFitted tests Predict before Fit
func TestDecisionTreeRegressor_NotFitted(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	if _, err := dt.Predict(mat.NewDense(1, 1, nil)); err == nil {
		t.Error("expected error when predicting with unfitted tree")
	}
}

// TestDecisionTreeRegressor_JSON tests persistence
func TestDecisionTreeRegressor_JSON(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{0, 1, 1, 0, 2, 1, 3, 0, 4, 1, 5, 0})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 1, 4, 4})

	dt := NewDecisionTreeRegressor(WithMaxDepth(2))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(dt)
	if err != nil {
		t.Fatal(err)
	}

	restored := NewDecisionTreeRegressor()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatal(err)
	}
	if !restored.IsFitted() || restored.MaxDepth != 2 {
		t.Fatalf("restored tree: fitted=%v depth=%d", restored.IsFitted(), restored.MaxDepth)
	}
	want, _ := dt.Predict(X)
	got, _ := restored.Predict(X)
	if !mat.Equal(want, got) {
		t.Error("restored tree predicts differently")
	}
}

// TestBinner tests threshold placement
func TestBinner(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 7,
		2, 7,
		2, 7,
		4, 7,
		8, 7,
	})
	b, err := NewBinner(X, 32)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1.5, 3, 6}
	if len(b.Thresholds[0]) != len(want) {
		t.Fatalf("thresholds = %v, want %v", b.Thresholds[0], want)
	}
	for i := range want {
		if b.Thresholds[0][i] != want[i] {
			t.Errorf("thresholds = %v, want %v", b.Thresholds[0], want)
		}
	}
	if b.NumBins(1) != 1 {
		t.Errorf("constant feature has %d bins, want 1", b.NumBins(1))
	}

	wide := mat.NewDense(1000, 1, nil)
	for i := 0; i < 1000; i++ {
		wide.Set(i, 0, float64(i))
	}
	b, err = NewBinner(wide, 32)
	if err != nil {
		t.Fatal(err)
	}
	if b.NumBins(0) > 32 {
		t.Errorf("NumBins = %d, want <= 32", b.NumBins(0))
	}
	for i := 0; i < 1000; i++ {
		v := float64(i)
		bin := int(b.bins[0][i])
		if bin > 0 && !(v > b.Thresholds[0][bin-1]) {
			t.Fatalf("value %v in bin %d violates lower bound", v, bin)
		}
		if bin < len(b.Thresholds[0]) && !(v <= b.Thresholds[0][bin]) {
			t.Fatalf("value %v in bin %d violates upper bound", v, bin)
		}
	}

	if _, err := NewBinner(wide, 1); err == nil {
		t.Error("expected error for max bins 1")
	}
}
