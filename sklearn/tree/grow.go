package tree

import (
	"math/rand/v2"
)

type grower struct {
	tree    *DecisionTreeRegressor
	binner  *Binner
	y       []float64
	w       []float64
	rng     *rand.Rand
	perNode int
}

// moments are weighted sums over a set of rows.
type moments struct {
	w, wy, wyy float64
}

func (m *moments) add(w, y float64) {
	m.w += w
	m.wy += w * y
	m.wyy += w * y * y
}

func (m moments) sub(o moments) moments {
	return moments{m.w - o.w, m.wy - o.wy, m.wyy - o.wyy}
}

func (m moments) mean() float64 {
	if m.w == 0 {
		return 0
	}
	return m.wy / m.w
}

func (m moments) variance() float64 {
	if m.w == 0 {
		return 0
	}
	mean := m.wy / m.w
	return max(m.wyy/m.w-mean*mean, 0)
}

type split struct {
	feature int
	bin     int
	gain    float64
}

func (g *grower) grow(rows []int, level int) *Node {
	var total moments
	for _, i := range rows {
		total.add(g.w[i], g.y[i])
	}
	node := &Node{
		Feature:    -1,
		Prediction: total.mean(),
		Impurity:   total.variance(),
		Weight:     total.w,
	}
	if level >= g.tree.MaxDepth || node.Impurity == 0 {
		return node
	}

	best, ok := g.bestSplit(rows, total)
	if !ok {
		return node
	}

	bins := g.binner.bins[best.feature]
	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, i := range rows {
		if int(bins[i]) <= best.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	node.Feature = best.feature
	node.Threshold = g.binner.Thresholds[best.feature][best.bin]
	node.Left = g.grow(left, level+1)
	node.Right = g.grow(right, level+1)
	return node
}

// bestSplit scans the candidate features of a node. Ties keep the first
// split found, scanning features in sampled order and bins ascending.
func (g *grower) bestSplit(rows []int, total moments) (split, bool) {
	minChild := float64(g.tree.MinInstancesPerNode)
	parentImpurity := total.variance()

	best := split{gain: minGain}
	found := false
	for _, f := range g.candidates() {
		nBins := g.binner.NumBins(f)
		if nBins < 2 {
			continue
		}
		hist := make([]moments, nBins)
		bins := g.binner.bins[f]
		for _, i := range rows {
			hist[bins[i]].add(g.w[i], g.y[i])
		}

		var left moments
		for b := 0; b < nBins-1; b++ {
			left.w += hist[b].w
			left.wy += hist[b].wy
			left.wyy += hist[b].wyy
			right := total.sub(left)
			if left.w < minChild || right.w < minChild {
				continue
			}
			gain := parentImpurity -
				left.w/total.w*left.variance() -
				right.w/total.w*right.variance()
			if gain > best.gain {
				best = split{feature: f, bin: b, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func (g *grower) candidates() []int {
	n := g.binner.NumFeatures()
	if g.perNode >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := g.rng.Perm(n)
	return perm[:g.perNode]
}
