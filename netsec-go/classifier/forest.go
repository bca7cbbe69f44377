package classifier

import (
	"math/rand"

	"github.com/netsec-ml/netsec/netsec-golib/decisiontree"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
)

// RandomForest averages the positive fraction predicted by trees grown on bootstrap samples.
type RandomForest struct {
	NEstimators int
	Bootstrap   bool
	Params      treeParams
	Seed        int64
	Ensemble    decisiontree.Ensemble
}

func newRandomForest(p Params, seed int64) (Classifier, error) {
	if err := p.check(append([]string{"n_estimators", "bootstrap"}, treeParamNames...)...); err != nil {
		return nil, err
	}
	if p.Str("splitter", "best") != "best" {
		return nil, errUnsupported("splitter", p["splitter"])
	}
	tp, err := parseTreeParams(p, treeParams{Criterion: "gini", Splitter: "best", MaxFeatures: "sqrt"})
	if err != nil {
		return nil, err
	}
	n, err := p.Int("n_estimators", 100)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, errUnsupported("n_estimators", n)
	}
	return &RandomForest{
		NEstimators: n,
		Bootstrap:   p.Str("bootstrap", "true") == "true",
		Params:      tp,
		Seed:        seed,
	}, nil
}

// Kind implements Classifier
func (f *RandomForest) Kind() string { return KindRandomForest }

// Fit implements Classifier
func (f *RandomForest) Fit(x frame.Matrix, y []float64) error {
	if err := checkLabels(x, y); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(f.Seed))
	trees := make([]decisiontree.DecisionTree, 0, f.NEstimators)
	for i := 0; i < f.NEstimators; i++ {
		treeRng := rand.New(rand.NewSource(rng.Int63()))
		xb, yb := x, y
		if f.Bootstrap {
			xb, yb = bootstrap(x, y, treeRng)
		}
		opts, err := f.Params.options(len(x[0]), treeRng)
		if err != nil {
			return err
		}
		tree, err := decisiontree.Build(xb, yb, nil, opts)
		if err != nil {
			return err
		}
		trees = append(trees, *tree)
	}
	f.Ensemble = decisiontree.Ensemble{Trees: trees}
	return nil
}

// Predict implements Classifier
func (f *RandomForest) Predict(x frame.Matrix) ([]float64, error) {
	if len(f.Ensemble.Trees) == 0 {
		return nil, errNotFitted
	}
	if err := checkFeatures(x, f.Ensemble.Trees[0].FeatureSize); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = label(f.Ensemble.Mean(row))
	}
	return out, nil
}

func bootstrap(x frame.Matrix, y []float64, rng *rand.Rand) (frame.Matrix, []float64) {
	xb := make(frame.Matrix, len(x))
	yb := make([]float64, len(y))
	for i := range xb {
		j := rng.Intn(len(x))
		xb[i], yb[i] = x[j], y[j]
	}
	return xb, yb
}
