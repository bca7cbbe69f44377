package classifier

import (
	"math/rand"

	"github.com/netsec-ml/netsec/netsec-golib/decisiontree"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
)

// treeParams are the growth parameters shared by the tree based families.
type treeParams struct {
	Criterion       string
	Splitter        string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
}

var treeParamNames = []string{"criterion", "splitter", "max_depth", "min_samples_split", "min_samples_leaf", "max_features"}

func parseTreeParams(p Params, def treeParams) (treeParams, error) {
	tp := treeParams{
		Criterion:   p.Str("criterion", def.Criterion),
		Splitter:    p.Str("splitter", def.Splitter),
		MaxFeatures: p.Str("max_features", def.MaxFeatures),
	}
	switch decisiontree.Criterion(tp.Criterion) {
	case decisiontree.Gini, decisiontree.Entropy, decisiontree.LogLoss, decisiontree.MSE, decisiontree.FriedmanMSE:
	default:
		return tp, errUnsupported("criterion", tp.Criterion)
	}
	switch decisiontree.Splitter(tp.Splitter) {
	case decisiontree.Best, decisiontree.Random:
	default:
		return tp, errUnsupported("splitter", tp.Splitter)
	}
	var err error
	if tp.MaxDepth, err = p.Int("max_depth", def.MaxDepth); err != nil {
		return tp, err
	}
	if tp.MinSamplesSplit, err = p.Int("min_samples_split", def.MinSamplesSplit); err != nil {
		return tp, err
	}
	if tp.MinSamplesLeaf, err = p.Int("min_samples_leaf", def.MinSamplesLeaf); err != nil {
		return tp, err
	}
	if _, err := maxFeatures(tp.MaxFeatures, 1); err != nil {
		return tp, err
	}
	return tp, nil
}

func (tp treeParams) options(nfeat int, rng *rand.Rand) (decisiontree.Options, error) {
	mf, err := maxFeatures(tp.MaxFeatures, nfeat)
	if err != nil {
		return decisiontree.Options{}, err
	}
	return decisiontree.Options{
		Criterion:       decisiontree.Criterion(tp.Criterion),
		Splitter:        decisiontree.Splitter(tp.Splitter),
		MaxDepth:        tp.MaxDepth,
		MinSamplesSplit: tp.MinSamplesSplit,
		MinSamplesLeaf:  tp.MinSamplesLeaf,
		MaxFeatures:     mf,
		Rand:            rng,
	}, nil
}

// DecisionTree is a single CART tree whose leaves hold the fraction of positive rows.
type DecisionTree struct {
	Params treeParams
	Seed   int64
	Tree   decisiontree.DecisionTree
}

func newDecisionTree(p Params, seed int64) (Classifier, error) {
	if err := p.check(treeParamNames...); err != nil {
		return nil, err
	}
	tp, err := parseTreeParams(p, treeParams{Criterion: "gini", Splitter: "best", MaxFeatures: "all"})
	if err != nil {
		return nil, err
	}
	return &DecisionTree{Params: tp, Seed: seed}, nil
}

// Kind implements Classifier
func (t *DecisionTree) Kind() string { return KindDecisionTree }

// Fit implements Classifier
func (t *DecisionTree) Fit(x frame.Matrix, y []float64) error {
	if err := checkLabels(x, y); err != nil {
		return err
	}
	opts, err := t.Params.options(len(x[0]), rand.New(rand.NewSource(t.Seed)))
	if err != nil {
		return err
	}
	tree, err := decisiontree.Build(x, y, nil, opts)
	if err != nil {
		return err
	}
	t.Tree = *tree
	return nil
}

// Predict implements Classifier
func (t *DecisionTree) Predict(x frame.Matrix) ([]float64, error) {
	if err := checkFeatures(x, t.Tree.FeatureSize); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = label(t.Tree.Evaluate(row))
	}
	return out, nil
}
