package classifier

import (
	"math"
	"math/rand"
	"sort"

	"github.com/netsec-ml/netsec/netsec-golib/decisiontree"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
)

// GradientBoosting fits regression trees to the gradient of the binomial deviance.
// Leaf values take a single Newton step and are shrunk by the learning rate.
type GradientBoosting struct {
	NEstimators  int
	LearningRate float64
	Subsample    float64
	Params       treeParams
	Seed         int64

	// Init is the log-odds of the positive class in the training labels
	Init     float64
	Ensemble decisiontree.Ensemble
}

func newGradientBoosting(p Params, seed int64) (Classifier, error) {
	if err := p.check(append([]string{"n_estimators", "learning_rate", "subsample", "loss"}, treeParamNames...)...); err != nil {
		return nil, err
	}
	if loss := p.Str("loss", "log_loss"); loss != "log_loss" && loss != "deviance" {
		return nil, errUnsupported("loss", loss)
	}
	tp, err := parseTreeParams(p, treeParams{Criterion: "friedman_mse", Splitter: "best", MaxDepth: 3, MaxFeatures: "all"})
	if err != nil {
		return nil, err
	}
	switch decisiontree.Criterion(tp.Criterion) {
	case decisiontree.MSE, decisiontree.FriedmanMSE:
	default:
		return nil, errUnsupported("criterion", tp.Criterion)
	}
	g := &GradientBoosting{Params: tp, Seed: seed}
	if g.NEstimators, err = p.Int("n_estimators", 100); err != nil {
		return nil, err
	}
	if g.LearningRate, err = p.Float("learning_rate", 0.1); err != nil {
		return nil, err
	}
	if g.Subsample, err = p.Float("subsample", 1.0); err != nil {
		return nil, err
	}
	if g.NEstimators < 1 {
		return nil, errUnsupported("n_estimators", g.NEstimators)
	}
	if g.LearningRate <= 0 {
		return nil, errUnsupported("learning_rate", g.LearningRate)
	}
	if g.Subsample <= 0 || g.Subsample > 1 {
		return nil, errUnsupported("subsample", g.Subsample)
	}
	return g, nil
}

// Kind implements Classifier
func (g *GradientBoosting) Kind() string { return KindGradientBoosting }

// Fit implements Classifier
func (g *GradientBoosting) Fit(x frame.Matrix, y []float64) error {
	if err := checkLabels(x, y); err != nil {
		return err
	}
	n := len(x)
	rng := rand.New(rand.NewSource(g.Seed))

	var pos float64
	for _, v := range y {
		pos += v
	}
	prior := math.Min(math.Max(pos/float64(n), 1e-15), 1-1e-15)
	g.Init = math.Log(prior / (1 - prior))

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = g.Init
	}

	trees := make([]decisiontree.DecisionTree, 0, g.NEstimators)
	for m := 0; m < g.NEstimators; m++ {
		idx := g.sample(n, rng)
		xs := make(frame.Matrix, len(idx))
		res := make([]float64, len(idx))
		hess := make([]float64, len(idx))
		for k, i := range idx {
			p := sigmoid(raw[i])
			xs[k] = x[i]
			res[k] = y[i] - p
			hess[k] = p * (1 - p)
		}

		opts, err := g.Params.options(len(x[0]), rng)
		if err != nil {
			return err
		}
		opts.Criterion = decisiontree.MSE
		opts.LeafValue = func(leaf []int) float64 {
			var num, den float64
			for _, k := range leaf {
				num += res[k]
				den += hess[k]
			}
			if math.Abs(den) < 1e-150 {
				return 0
			}
			return num / den
		}
		tree, err := decisiontree.Build(xs, res, nil, opts)
		if err != nil {
			return err
		}
		for j := range tree.Outputs {
			tree.Outputs[j] *= g.LearningRate
		}
		for i := range raw {
			raw[i] += tree.Evaluate(x[i])
		}
		trees = append(trees, *tree)
	}
	g.Ensemble = decisiontree.Ensemble{Trees: trees}
	return nil
}

// sample draws the rows used for one boosting round, without replacement.
func (g *GradientBoosting) sample(n int, rng *rand.Rand) []int {
	if g.Subsample >= 1 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	k := atLeastOne(int(g.Subsample * float64(n)))
	idx := rng.Perm(n)[:k]
	sort.Ints(idx)
	return idx
}

// Predict implements Classifier
func (g *GradientBoosting) Predict(x frame.Matrix) ([]float64, error) {
	if len(g.Ensemble.Trees) == 0 {
		return nil, errNotFitted
	}
	if err := checkFeatures(x, g.Ensemble.Trees[0].FeatureSize); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if g.Init+g.Ensemble.Evaluate(row) > 0 {
			out[i] = 1
		}
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
