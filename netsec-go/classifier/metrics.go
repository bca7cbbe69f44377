package classifier

import (
	"fmt"
)

// Metric is the classification score of a model on one partition. The positive class is 1.
type Metric struct {
	F1        float64 `json:"f1_score" yaml:"f1_score"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
}

// Score computes f1, precision and recall. A ratio with a zero denominator is 0.
func Score(yTrue, yPred []float64) (Metric, error) {
	if len(yTrue) != len(yPred) {
		return Metric{}, fmt.Errorf("got %d labels but %d predictions", len(yTrue), len(yPred))
	}
	var tp, fp, fn float64
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			tp++
		case yPred[i] == 1:
			fp++
		case yTrue[i] == 1:
			fn++
		}
	}
	m := Metric{Precision: ratio(tp, tp+fp), Recall: ratio(tp, tp+fn)}
	m.F1 = ratio(2*tp, 2*tp+fp+fn)
	return m, nil
}

// Accuracy is the fraction of matching labels.
func Accuracy(yTrue, yPred []float64) float64 {
	var hit float64
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return ratio(hit, float64(len(yTrue)))
}

// R2 is the coefficient of determination of yPred against yTrue. A constant yTrue
// scores 1 when predicted exactly and 0 otherwise.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var mean float64
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))
	var ssRes, ssTot float64
	for i := range yTrue {
		ssRes += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
		ssTot += (yTrue[i] - mean) * (yTrue[i] - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// Scorer maps a scoring name to a function of (yTrue, yPred).
func Scorer(name string) (func(yTrue, yPred []float64) float64, error) {
	switch name {
	case "f1":
		return func(yTrue, yPred []float64) float64 {
			m, _ := Score(yTrue, yPred)
			return m.F1
		}, nil
	case "accuracy":
		return Accuracy, nil
	case "r2":
		return R2, nil
	default:
		return nil, fmt.Errorf("unknown scoring %q", name)
	}
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
