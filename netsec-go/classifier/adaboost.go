package classifier

import (
	"fmt"
	"math"

	"github.com/netsec-ml/netsec/netsec-golib/decisiontree"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
)

// AdaBoost is discrete SAMME boosting over depth one trees.
type AdaBoost struct {
	NEstimators  int
	LearningRate float64

	Trees  []decisiontree.DecisionTree
	Alphas []float64
}

func newAdaBoost(p Params, seed int64) (Classifier, error) {
	if err := p.check("n_estimators", "learning_rate", "algorithm"); err != nil {
		return nil, err
	}
	if alg := p.Str("algorithm", "SAMME"); alg != "SAMME" {
		return nil, errUnsupported("algorithm", alg)
	}
	a := &AdaBoost{}
	var err error
	if a.NEstimators, err = p.Int("n_estimators", 50); err != nil {
		return nil, err
	}
	if a.LearningRate, err = p.Float("learning_rate", 1.0); err != nil {
		return nil, err
	}
	if a.NEstimators < 1 {
		return nil, errUnsupported("n_estimators", a.NEstimators)
	}
	if a.LearningRate <= 0 {
		return nil, errUnsupported("learning_rate", a.LearningRate)
	}
	return a, nil
}

// Kind implements Classifier
func (a *AdaBoost) Kind() string { return KindAdaBoost }

// Fit implements Classifier
func (a *AdaBoost) Fit(x frame.Matrix, y []float64) error {
	if err := checkLabels(x, y); err != nil {
		return err
	}
	n := len(x)
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	a.Trees, a.Alphas = nil, nil

	wrong := make([]bool, n)
	for m := 0; m < a.NEstimators; m++ {
		stump, err := decisiontree.Build(x, y, w, decisiontree.Options{Criterion: decisiontree.Gini, MaxDepth: 1})
		if err != nil {
			return err
		}
		var errW, total float64
		for i, row := range x {
			wrong[i] = label(stump.Evaluate(row)) != y[i]
			total += w[i]
			if wrong[i] {
				errW += w[i]
			}
		}
		rate := errW / total

		if rate <= 0 {
			a.Trees = append(a.Trees, *stump)
			a.Alphas = append(a.Alphas, 1)
			break
		}
		if rate >= 0.5 {
			if m == 0 {
				return fmt.Errorf("base estimator is no better than chance (error %.3f)", rate)
			}
			break
		}

		alpha := a.LearningRate * math.Log((1-rate)/rate)
		a.Trees = append(a.Trees, *stump)
		a.Alphas = append(a.Alphas, alpha)

		var sum float64
		for i := range w {
			if wrong[i] {
				w[i] *= math.Exp(alpha)
			}
			sum += w[i]
		}
		if sum <= 0 || math.IsInf(sum, 0) {
			break
		}
		for i := range w {
			w[i] /= sum
		}
	}
	return nil
}

// Predict implements Classifier
func (a *AdaBoost) Predict(x frame.Matrix) ([]float64, error) {
	if len(a.Trees) == 0 {
		return nil, errNotFitted
	}
	if err := checkFeatures(x, a.Trees[0].FeatureSize); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, row := range x {
		var score float64
		for m := range a.Trees {
			score += a.Alphas[m] * (2*label(a.Trees[m].Evaluate(row)) - 1)
		}
		if score > 0 {
			out[i] = 1
		}
	}
	return out, nil
}
