package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// TreeConfig bounds the growth of a single regression tree.
type TreeConfig struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
}

// RegressionTree is a CART tree fit on squared error. Nodes are stored
// flattened, children referenced by absolute index.
type RegressionTree struct {
	nodes  []TreeNode
	config TreeConfig
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	Samples    int     `json:"samples"`
	IsLeaf     bool    `json:"is_leaf"`
}

func NewRegressionTree(config TreeConfig) *RegressionTree {
	if config.MinSamplesSplit < 2 {
		config.MinSamplesSplit = 2
	}
	if config.MinSamplesLeaf < 1 {
		config.MinSamplesLeaf = 1
	}
	return &RegressionTree{config: config}
}

// Fit grows the tree over the rows named by indices. Indices may repeat,
// which is how bootstrap samples are passed in.
func (dt *RegressionTree) Fit(features [][]float64, labels []float64, indices []int, rnd *rand.Rand) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if len(indices) == 0 {
		return errors.New("no sample indices")
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(0))
	}

	b := &treeBuilder{
		features: features,
		labels:   labels,
		config:   dt.config,
		rnd:      rnd,
		order:    make([]int, len(features[0])),
	}
	for i := range b.order {
		b.order[i] = i
	}
	b.build(append([]int(nil), indices...), 0)
	dt.nodes = b.nodes
	return nil
}

func (dt *RegressionTree) Predict(features []float64) (float64, error) {
	if len(dt.nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

// Nodes returns the flattened node table.
func (dt *RegressionTree) Nodes() []TreeNode {
	return append([]TreeNode(nil), dt.nodes...)
}

func (dt *RegressionTree) Depth() int {
	if len(dt.nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return 0
		}
		left, right := walk(node.LeftChild), walk(node.RightChild)
		if left > right {
			return left + 1
		}
		return right + 1
	}
	return walk(0)
}

// validate checks that a node table loaded from disk is traversable.
func (dt *RegressionTree) validate(featureCount int) error {
	if len(dt.nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range dt.nodes {
		if node.IsLeaf {
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= featureCount {
			return errors.New("feature index out of range")
		}
		if node.LeftChild <= i || node.LeftChild >= len(dt.nodes) ||
			node.RightChild <= i || node.RightChild >= len(dt.nodes) {
			return errors.New("invalid child index")
		}
	}
	return nil
}

type treeBuilder struct {
	features [][]float64
	labels   []float64
	config   TreeConfig
	rnd      *rand.Rand
	order    []int
	nodes    []TreeNode
}

func (b *treeBuilder) build(indices []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      meanLabel(b.labels, indices),
		Samples:    len(indices),
		IsLeaf:     true,
	})

	if b.config.MaxDepth > 0 && depth >= b.config.MaxDepth {
		return idx
	}
	if len(indices) < b.config.MinSamplesSplit || len(indices) < 2*b.config.MinSamplesLeaf {
		return idx
	}
	if isConstant(b.labels, indices) {
		return idx
	}

	feature, threshold, ok := b.findBestSplit(indices)
	if !ok {
		return idx
	}

	left, right := partition(b.features, indices, feature, threshold)
	if len(left) == 0 || len(right) == 0 {
		return idx
	}

	leftIdx := b.build(left, depth+1)
	rightIdx := b.build(right, depth+1)

	node := &b.nodes[idx]
	node.FeatureIdx = feature
	node.Threshold = threshold
	node.LeftChild = leftIdx
	node.RightChild = rightIdx
	node.IsLeaf = false
	return idx
}

// findBestSplit maximises sumL²/nL + sumR²/nR, which is the same as
// minimising the summed squared error of both children. Features are
// visited in a random order so ties resolve by the tree's seed.
func (b *treeBuilder) findBestSplit(indices []int) (int, float64, bool) {
	b.rnd.Shuffle(len(b.order), func(i, j int) { b.order[i], b.order[j] = b.order[j], b.order[i] })

	n := len(indices)
	total := 0.0
	for _, i := range indices {
		total += b.labels[i]
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestScore := math.Inf(-1)
	sorted := make([]int, n)
	minLeaf := b.config.MinSamplesLeaf

	for _, featureIdx := range b.order {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.features[sorted[i]][featureIdx] < b.features[sorted[j]][featureIdx]
		})

		leftSum := 0.0
		for pos := 1; pos < n; pos++ {
			leftSum += b.labels[sorted[pos-1]]
			lo := b.features[sorted[pos-1]][featureIdx]
			hi := b.features[sorted[pos]][featureIdx]
			if lo >= hi {
				continue
			}
			if pos < minLeaf || n-pos < minLeaf {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(pos) + rightSum*rightSum/float64(n-pos)
			if score > bestScore {
				bestScore = score
				bestFeature = featureIdx
				bestThreshold = midpoint(lo, hi)
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func midpoint(lo, hi float64) float64 {
	mid := lo + (hi-lo)/2
	if mid >= hi || math.IsInf(mid, 0) {
		return lo
	}
	return mid
}

func partition(features [][]float64, indices []int, featureIdx int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		if features[i][featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func meanLabel(labels []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range indices {
		sum += labels[i]
	}
	return sum / float64(len(indices))
}

func isConstant(labels []float64, indices []int) bool {
	first := labels[indices[0]]
	for _, i := range indices[1:] {
		if labels[i] != first {
			return false
		}
	}
	return true
}
