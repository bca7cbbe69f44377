package decisiontree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Criterion measures the impurity of a set of weighted targets.
type Criterion string

const (
	// Gini impurity for binary {0,1} targets
	Gini Criterion = "gini"
	// Entropy (information gain) for binary {0,1} targets
	Entropy Criterion = "entropy"
	// Log loss is treated like entropy when growing trees
	LogLoss Criterion = "log_loss"
	// MSE is the weighted variance of real valued targets
	MSE Criterion = "squared_error"
	// FriedmanMSE is accepted as an alias of MSE
	FriedmanMSE Criterion = "friedman_mse"
)

// Splitter selects how candidate thresholds are chosen at each node.
type Splitter string

const (
	// Best evaluates every midpoint between distinct feature values
	Best Splitter = "best"
	// Random draws a single uniform threshold per candidate feature
	Random Splitter = "random"
)

// Options controls tree growth.
type Options struct {
	Criterion Criterion
	Splitter  Splitter
	// MaxDepth of 0 grows until leaves are pure or cannot be split
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures is the number of features considered per node; 0 means all
	MaxFeatures int
	// Rand is required when MaxFeatures is set or Splitter is Random
	Rand *rand.Rand
	// LeafValue overrides the default leaf output (weighted mean of y over idx)
	LeafValue func(idx []int) float64
}

func (o Options) withDefaults(nfeat int) (Options, error) {
	switch o.Criterion {
	case "":
		o.Criterion = Gini
	case Gini, Entropy, LogLoss, MSE, FriedmanMSE:
	default:
		return o, fmt.Errorf("unknown criterion %q", o.Criterion)
	}
	switch o.Splitter {
	case "":
		o.Splitter = Best
	case Best, Random:
	default:
		return o, fmt.Errorf("unknown splitter %q", o.Splitter)
	}
	if o.MinSamplesSplit < 2 {
		o.MinSamplesSplit = 2
	}
	if o.MinSamplesLeaf < 1 {
		o.MinSamplesLeaf = 1
	}
	if o.MaxFeatures <= 0 || o.MaxFeatures > nfeat {
		o.MaxFeatures = nfeat
	}
	if (o.MaxFeatures < nfeat || o.Splitter == Random) && o.Rand == nil {
		return o, fmt.Errorf("a random source is required for feature sampling or random splits")
	}
	return o, nil
}

// stats accumulates the sufficient statistics for every criterion.
type stats struct {
	w, sy, syy float64
	n          int
}

func (s *stats) add(w, y float64) {
	s.w += w
	s.sy += w * y
	s.syy += w * y * y
	s.n++
}

func (s stats) sub(o stats) stats {
	return stats{w: s.w - o.w, sy: s.sy - o.sy, syy: s.syy - o.syy, n: s.n - o.n}
}

func (s stats) impurity(c Criterion) float64 {
	if s.w <= 0 {
		return 0
	}
	switch c {
	case MSE, FriedmanMSE:
		mean := s.sy / s.w
		v := s.syy/s.w - mean*mean
		if v < 0 {
			return 0
		}
		return v
	case Entropy, LogLoss:
		p := clamp01(s.sy / s.w)
		var h float64
		if p > 0 {
			h -= p * math.Log2(p)
		}
		if p < 1 {
			h -= (1 - p) * math.Log2(1-p)
		}
		return h
	default:
		p := clamp01(s.sy / s.w)
		return 2 * p * (1 - p)
	}
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

type builder struct {
	x    [][]float64
	y    []float64
	w    []float64
	opts Options
	tree *DecisionTree
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

// Build grows a tree on the rows of x with targets y and sample weights w (nil means uniform).
func Build(x [][]float64, y, w []float64, opts Options) (*DecisionTree, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("cannot build a tree from zero rows")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("got %d rows but %d targets", len(x), len(y))
	}
	if w == nil {
		w = make([]float64, len(x))
		for i := range w {
			w[i] = 1
		}
	} else if len(w) != len(x) {
		return nil, fmt.Errorf("got %d rows but %d weights", len(x), len(w))
	}
	nfeat := len(x[0])
	if nfeat == 0 {
		return nil, fmt.Errorf("rows have no features")
	}
	for i, row := range x {
		if len(row) != nfeat {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), nfeat)
		}
	}
	opts, err := opts.withDefaults(nfeat)
	if err != nil {
		return nil, err
	}

	b := &builder{x: x, y: y, w: w, opts: opts, tree: &DecisionTree{FeatureSize: nfeat}}
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}

	s, ok := b.findSplit(idx, 0)
	if !ok {
		b.tree.Outputs = append(b.tree.Outputs, b.leafValue(idx))
		return b.tree, nil
	}
	b.tree.Nodes = append(b.tree.Nodes, Node{})
	b.grow(0, s, 1)
	return b.tree, nil
}

// grow fills the node at pos with split s and recursively builds its children.
func (b *builder) grow(pos int, s split, depth int) {
	if depth > b.tree.Depth {
		b.tree.Depth = depth
	}
	node := Node{FeatureIndex: s.feature, Threshold: s.threshold}
	node.LeftChild, node.LeftIsLeaf = b.child(s.left, depth)
	node.RightChild, node.RightIsLeaf = b.child(s.right, depth)
	b.tree.Nodes[pos] = node
}

func (b *builder) child(idx []int, depth int) (int, bool) {
	s, ok := b.findSplit(idx, depth)
	if !ok {
		b.tree.Outputs = append(b.tree.Outputs, b.leafValue(idx))
		return len(b.tree.Outputs) - 1, true
	}
	pos := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{})
	b.grow(pos, s, depth+1)
	return pos, false
}

func (b *builder) leafValue(idx []int) float64 {
	if b.opts.LeafValue != nil {
		return b.opts.LeafValue(idx)
	}
	var st stats
	for _, i := range idx {
		st.add(b.w[i], b.y[i])
	}
	if st.w <= 0 {
		return 0
	}
	return st.sy / st.w
}

// findSplit returns the best split of idx, or false if the node should be a leaf.
func (b *builder) findSplit(idx []int, depth int) (split, bool) {
	if b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth {
		return split{}, false
	}
	if len(idx) < b.opts.MinSamplesSplit || len(idx) < 2*b.opts.MinSamplesLeaf {
		return split{}, false
	}
	var total stats
	for _, i := range idx {
		total.add(b.w[i], b.y[i])
	}
	parent := total.impurity(b.opts.Criterion)
	if parent <= 1e-12 {
		return split{}, false
	}

	best := split{feature: -1}
	for _, f := range b.features() {
		var thr, gain float64
		var ok bool
		if b.opts.Splitter == Random {
			thr, gain, ok = b.randomThreshold(idx, f, total, parent)
		} else {
			thr, gain, ok = b.bestThreshold(idx, f, total, parent)
		}
		if ok && gain > best.gain+1e-12 {
			best.feature, best.threshold, best.gain = f, thr, gain
		}
	}
	if best.feature < 0 {
		return split{}, false
	}
	for _, i := range idx {
		if b.x[i][best.feature] < best.threshold {
			best.left = append(best.left, i)
		} else {
			best.right = append(best.right, i)
		}
	}
	return best, true
}

func (b *builder) features() []int {
	nfeat := b.tree.FeatureSize
	if b.opts.MaxFeatures >= nfeat {
		fs := make([]int, nfeat)
		for i := range fs {
			fs[i] = i
		}
		return fs
	}
	fs := b.opts.Rand.Perm(nfeat)[:b.opts.MaxFeatures]
	sort.Ints(fs)
	return fs
}

// gain computes the weighted impurity decrease of partitioning total into left and its complement.
func (b *builder) gain(total, left stats, parent float64) (float64, bool) {
	right := total.sub(left)
	if left.n < b.opts.MinSamplesLeaf || right.n < b.opts.MinSamplesLeaf {
		return 0, false
	}
	c := b.opts.Criterion
	return total.w*parent - left.w*left.impurity(c) - right.w*right.impurity(c), true
}

func (b *builder) bestThreshold(idx []int, f int, total stats, parent float64) (float64, float64, bool) {
	order := make([]int, len(idx))
	copy(order, idx)
	sort.SliceStable(order, func(i, j int) bool {
		return b.x[order[i]][f] < b.x[order[j]][f]
	})

	var left stats
	var bestThr, bestGain float64
	found := false
	for k := 0; k < len(order)-1; k++ {
		i := order[k]
		left.add(b.w[i], b.y[i])
		cur, next := b.x[i][f], b.x[order[k+1]][f]
		if next <= cur {
			continue
		}
		g, ok := b.gain(total, left, parent)
		if !ok {
			continue
		}
		if !found || g > bestGain+1e-12 {
			bestThr, bestGain, found = cur+(next-cur)/2, g, true
		}
	}
	return bestThr, bestGain, found
}

func (b *builder) randomThreshold(idx []int, f int, total stats, parent float64) (float64, float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		v := b.x[i][f]
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if !(hi > lo) {
		return 0, 0, false
	}
	thr := lo + b.opts.Rand.Float64()*(hi-lo)
	if thr <= lo {
		thr = lo + (hi-lo)/2
	}
	var left stats
	for _, i := range idx {
		if b.x[i][f] < thr {
			left.add(b.w[i], b.y[i])
		}
	}
	g, ok := b.gain(total, left, parent)
	return thr, g, ok
}
