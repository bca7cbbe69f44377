package classifier

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/netsec-ml/netsec/netsec-golib/workerpool"
)

// Grid maps parameter names to candidate values.
type Grid map[string][]interface{}

// Expand lists every combination of the grid. Names are sorted and the last name varies fastest.
// An empty grid has a single candidate with default parameters.
func (g Grid) Expand() []Params {
	names := make([]string, 0, len(g))
	for k := range g {
		names = append(names, k)
	}
	sort.Strings(names)

	out := []Params{{}}
	for _, name := range names {
		var next []Params
		for _, p := range out {
			for _, v := range g[name] {
				q := make(Params, len(p)+1)
				for k, pv := range p {
					q[k] = pv
				}
				q[name] = v
				next = append(next, q)
			}
		}
		out = next
	}
	return out
}

// StratifiedFolds assigns each row to one of k folds without shuffling. Each class is
// spread over the folds in row order so that every fold gets a near equal share.
func StratifiedFolds(y []float64, k int) ([]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("cannot split %d rows into %d folds", len(y), k)
	}

	classes := make(map[float64]int)
	var labels []float64
	for _, v := range y {
		if _, ok := classes[v]; !ok {
			classes[v] = 0
			labels = append(labels, v)
		}
	}
	sort.Float64s(labels)
	for i, v := range labels {
		classes[v] = i
	}

	// counts of each class in y_sorted[f::k]
	sorted := append([]float64(nil), y...)
	sort.Float64s(sorted)
	alloc := make([][]int, k)
	for f := range alloc {
		alloc[f] = make([]int, len(labels))
		for i := f; i < len(sorted); i += k {
			alloc[f][classes[sorted[i]]]++
		}
	}

	folds := make([]int, len(y))
	cur := make([]int, len(labels))
	used := make([]int, len(labels))
	for i, v := range y {
		c := classes[v]
		for used[c] >= alloc[cur[c]][c] {
			cur[c]++
			used[c] = 0
		}
		folds[i] = cur[c]
		used[c]++
	}
	return folds, nil
}

// SearchResult is the outcome of a grid search over one family.
type SearchResult struct {
	Params  Params
	CVScore float64
	// Model is refit on the full training matrix with Params
	Model Classifier
}

// SearchOptions configures GridSearch.
type SearchOptions struct {
	Folds   int
	Seed    int64
	Workers int
}

// GridSearch scores every grid candidate by mean cross-validated accuracy, picks the best
// (the first on ties) and refits it on all rows. Candidate fits run on a worker pool.
// A candidate that fails on any fold is skipped; the search fails only when every candidate does.
func GridSearch(ctx context.Context, fam Family, grid Grid, x frame.Matrix, y []float64, opts SearchOptions) (SearchResult, error) {
	candidates := grid.Expand()
	for _, p := range candidates {
		if _, err := fam.New(p, opts.Seed); err != nil {
			return SearchResult{}, fmt.Errorf("%s: %v", fam.Name, err)
		}
	}
	folds, err := StratifiedFolds(y, opts.Folds)
	if err != nil {
		return SearchResult{}, err
	}
	splits := make([]cvSplit, opts.Folds)
	for f := range splits {
		splits[f] = makeSplit(x, y, folds, f)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	scores := make([][]float64, len(candidates))
	failures := make([]error, len(candidates))
	var m sync.Mutex
	var jobs []workerpool.Job
	for c := range candidates {
		scores[c] = make([]float64, opts.Folds)
		for f := range splits {
			c, f := c, f
			jobs = append(jobs, func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				score, err := scoreFold(fam, candidates[c], splits[f], opts.Seed)
				if err != nil {
					m.Lock()
					if failures[c] == nil {
						failures[c] = fmt.Errorf("%s [%s] fold %d: %v", fam.Name, candidates[c].Key(), f, err)
					}
					m.Unlock()
					score = math.Inf(-1)
				}
				scores[c][f] = score
				return nil
			})
		}
	}

	pool := workerpool.New(workers)
	pool.Add(jobs)
	if err := pool.Close(); err != nil {
		return SearchResult{}, err
	}

	// a candidate that failed on any fold scores -Inf and cannot be selected
	best := -1
	bestScore := math.Inf(-1)
	for c := range candidates {
		if failures[c] != nil {
			continue
		}
		var sum float64
		for _, s := range scores[c] {
			sum += s
		}
		mean := sum / float64(len(scores[c]))
		if best < 0 || mean > bestScore {
			best, bestScore = c, mean
		}
	}
	if best < 0 {
		return SearchResult{}, failures[0]
	}

	model, err := fam.New(candidates[best], opts.Seed)
	if err != nil {
		return SearchResult{}, err
	}
	if err := model.Fit(x, y); err != nil {
		return SearchResult{}, fmt.Errorf("%s [%s] refit: %v", fam.Name, candidates[best].Key(), err)
	}
	return SearchResult{Params: candidates[best], CVScore: bestScore, Model: model}, nil
}

func scoreFold(fam Family, p Params, s cvSplit, seed int64) (float64, error) {
	model, err := fam.New(p, seed)
	if err != nil {
		return 0, err
	}
	if err := model.Fit(s.trainX, s.trainY); err != nil {
		return 0, err
	}
	pred, err := model.Predict(s.testX)
	if err != nil {
		return 0, err
	}
	return Accuracy(s.testY, pred), nil
}

type cvSplit struct {
	trainX, testX frame.Matrix
	trainY, testY []float64
}

func makeSplit(x frame.Matrix, y []float64, folds []int, f int) cvSplit {
	var s cvSplit
	for i := range x {
		if folds[i] == f {
			s.testX = append(s.testX, x[i])
			s.testY = append(s.testY, y[i])
		} else {
			s.trainX = append(s.trainX, x[i])
			s.trainY = append(s.trainY, y[i])
		}
	}
	return s
}
