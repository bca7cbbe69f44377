// Package decisiontree grows CART trees over dense float features and evaluates them
// as single trees or additive ensembles.
package decisiontree

// Node splits on x[FeatureIndex] < Threshold. A child index refers to Nodes when the
// child is internal and to Outputs when it is a leaf.
type Node struct {
	FeatureIndex int
	Threshold    float64
	LeftChild    int
	LeftIsLeaf   bool
	RightChild   int
	RightIsLeaf  bool
}

// DecisionTree maps a feature vector to one of its leaf outputs.
// A tree with no Nodes is a single leaf whose output is Outputs[0].
type DecisionTree struct {
	// Nodes[0] is the root
	Nodes   []Node
	Outputs []float64
	// FeatureSize is the length of the vectors the tree accepts
	FeatureSize int
	// Depth is the number of splits on the longest root to leaf path
	Depth int
}

// Bin returns the index into Outputs of the leaf x falls into. It panics on vectors of the
// wrong length and on trees without outputs.
func (t *DecisionTree) Bin(x []float64) int {
	if len(x) != t.FeatureSize {
		panic("feature vector had incorrect length")
	}
	if len(t.Outputs) == 0 {
		panic("tree not initialized")
	}
	if len(t.Nodes) == 0 {
		return 0
	}

	node := &t.Nodes[0]
	// a well formed tree visits each node at most once
	for steps := 0; steps <= len(t.Nodes); steps++ {
		child, leaf := node.RightChild, node.RightIsLeaf
		if x[node.FeatureIndex] < node.Threshold {
			child, leaf = node.LeftChild, node.LeftIsLeaf
		}
		if leaf {
			return child
		}
		node = &t.Nodes[child]
	}
	panic("tree traversal did not terminate")
}

// Evaluate returns the output of the leaf x falls into.
func (t *DecisionTree) Evaluate(x []float64) float64 {
	return t.Outputs[t.Bin(x)]
}

// Leaves is the number of leaves.
func (t *DecisionTree) Leaves() int {
	return len(t.Outputs)
}

// Ensemble is an additive collection of trees.
type Ensemble struct {
	Trees []DecisionTree
}

// Evaluate sums the outputs of every tree.
func (e *Ensemble) Evaluate(x []float64) float64 {
	var sum float64
	for i := range e.Trees {
		sum += e.Trees[i].Evaluate(x)
	}
	return sum
}

// Mean averages the outputs of every tree, or returns 0 for an empty ensemble.
func (e *Ensemble) Mean(x []float64) float64 {
	if len(e.Trees) == 0 {
		return 0
	}
	return e.Evaluate(x) / float64(len(e.Trees))
}
