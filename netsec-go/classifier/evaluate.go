package classifier

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/netsec-ml/netsec/netsec-golib/frame"
)

// Report is the result of searching one family.
type Report struct {
	Name      string
	Params    Params
	CVScore   float64
	TestScore float64
	Model     Classifier
	// Err is set when the family could not be fit; the other fields are then empty
	Err error
}

// EvaluateOptions configures EvaluateModels.
type EvaluateOptions struct {
	// Scoring is the test-set score: f1, accuracy or r2
	Scoring string
	SearchOptions
}

// EvaluateModels grid searches every family of catalog and scores the refit model on the test rows.
// Reports follow catalog order. A family that fails is reported with Err rather than aborting the others.
func EvaluateModels(ctx context.Context, catalog []Family, grids map[string]Grid, xTrain frame.Matrix, yTrain []float64, xTest frame.Matrix, yTest []float64, opts EvaluateOptions) ([]Report, error) {
	scorer, err := Scorer(opts.Scoring)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool)
	for _, fam := range catalog {
		known[fam.Name] = true
	}
	var unknown []string
	for name := range grids {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("parameter grids given for unknown models %v", unknown)
	}

	reports := make([]Report, 0, len(catalog))
	for _, fam := range catalog {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := Report{Name: fam.Name}
		res, err := GridSearch(ctx, fam, grids[fam.Name], xTrain, yTrain, opts.SearchOptions)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.Err = err
			reports = append(reports, r)
			continue
		}
		pred, err := res.Model.Predict(xTest)
		if err != nil {
			r.Err = err
			reports = append(reports, r)
			continue
		}
		r.Params, r.CVScore, r.Model = res.Params, res.CVScore, res.Model
		r.TestScore = scorer(yTest, pred)
		reports = append(reports, r)
	}
	return reports, nil
}

// Scores maps each successfully fit family to its test score.
func Scores(reports []Report) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range reports {
		if r.Err == nil {
			out[r.Name] = r.TestScore
		}
	}
	return out
}

// SelectBest returns the report with the highest test score, the earliest on ties.
func SelectBest(reports []Report) (Report, error) {
	best := -1
	bestScore := math.Inf(-1)
	for i, r := range reports {
		if r.Err != nil || r.Model == nil || math.IsNaN(r.TestScore) {
			continue
		}
		if best < 0 || r.TestScore > bestScore {
			best, bestScore = i, r.TestScore
		}
	}
	if best < 0 {
		return Report{}, fmt.Errorf("no model in the catalog could be fit")
	}
	return reports[best], nil
}
