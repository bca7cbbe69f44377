// Package impute fills missing feature values from the nearest rows seen at fit time.
package impute

import (
	"fmt"
	"math"
	"sort"

	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"gonum.org/v1/gonum/floats"
)

// Weighting schemes for neighbor contributions
const (
	Uniform  = "uniform"
	Distance = "distance"
)

// KNNImputer replaces each missing value with the (optionally distance weighted) mean
// of that feature over the NNeighbors nearest fit rows where it is present.
// Distances are euclidean over the coordinates present in both rows, scaled up by
// the fraction of coordinates used. When no fit row can serve as a donor the
// fit-time column mean is used, or 0 for a column that was entirely missing.
type KNNImputer struct {
	NNeighbors int
	Weights    string

	fit   frame.Matrix
	means []float64
}

// NewKNNImputer validates the parameters and returns an unfitted imputer.
func NewKNNImputer(neighbors int, weights string) (*KNNImputer, error) {
	if neighbors < 1 {
		return nil, fmt.Errorf("n_neighbors must be positive, got %d", neighbors)
	}
	switch weights {
	case Uniform, Distance:
	default:
		return nil, fmt.Errorf("unknown weights %q", weights)
	}
	return &KNNImputer{NNeighbors: neighbors, Weights: weights}, nil
}

// Features returns the number of columns the imputer was fit on, or 0.
func (k *KNNImputer) Features() int {
	return len(k.means)
}

// Fit stores a copy of x as the donor set.
func (k *KNNImputer) Fit(x frame.Matrix) error {
	n, d := x.Dims()
	if n == 0 || d == 0 {
		return fmt.Errorf("cannot fit imputer on a %dx%d matrix", n, d)
	}
	k.fit = make(frame.Matrix, n)
	for i, row := range x {
		if len(row) != d {
			return fmt.Errorf("row %d has %d columns, expected %d", i, len(row), d)
		}
		k.fit[i] = append([]float64(nil), row...)
	}
	k.means = make([]float64, d)
	for j := 0; j < d; j++ {
		var sum float64
		var cnt int
		for _, row := range k.fit {
			if !frame.IsMissing(row[j]) {
				sum += row[j]
				cnt++
			}
		}
		if cnt > 0 {
			k.means[j] = sum / float64(cnt)
		}
	}
	return nil
}

// FitTransform fits on x and returns x with missing values filled.
func (k *KNNImputer) FitTransform(x frame.Matrix) (frame.Matrix, error) {
	if err := k.Fit(x); err != nil {
		return nil, err
	}
	return k.Transform(x)
}

// Transform returns a copy of x with missing values filled. Only fit rows are used as donors.
func (k *KNNImputer) Transform(x frame.Matrix) (frame.Matrix, error) {
	if k.fit == nil {
		return nil, fmt.Errorf("imputer is not fitted")
	}
	d := k.Features()
	out := make(frame.Matrix, len(x))
	for i, row := range x {
		if len(row) != d {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), d)
		}
		out[i] = append([]float64(nil), row...)
		if !hasMissing(row) {
			continue
		}
		dist := make([]float64, len(k.fit))
		for r, donor := range k.fit {
			dist[r] = nanEuclidean(row, donor)
		}
		for j, v := range row {
			if frame.IsMissing(v) {
				out[i][j] = k.impute(j, dist)
			}
		}
	}
	return out, nil
}

type neighbor struct {
	row  int
	dist float64
}

func (k *KNNImputer) impute(col int, dist []float64) float64 {
	var donors []neighbor
	for r, row := range k.fit {
		if frame.IsMissing(row[col]) || math.IsNaN(dist[r]) {
			continue
		}
		donors = append(donors, neighbor{r, dist[r]})
	}
	if len(donors) == 0 {
		return k.means[col]
	}
	sort.SliceStable(donors, func(a, b int) bool {
		return donors[a].dist < donors[b].dist
	})
	if len(donors) > k.NNeighbors {
		donors = donors[:k.NNeighbors]
	}

	values := make([]float64, len(donors))
	weights := make([]float64, len(donors))
	exact := false
	for i, nb := range donors {
		values[i] = k.fit[nb.row][col]
		weights[i] = 1
		if nb.dist == 0 {
			exact = true
		}
	}
	if k.Weights == Distance {
		for i, nb := range donors {
			switch {
			case exact && nb.dist == 0:
				weights[i] = 1
			case exact:
				weights[i] = 0
			default:
				weights[i] = 1 / nb.dist
			}
		}
	}
	return floats.Dot(weights, values) / floats.Sum(weights)
}

func hasMissing(row []float64) bool {
	for _, v := range row {
		if frame.IsMissing(v) {
			return true
		}
	}
	return false
}

// nanEuclidean is NaN when the rows share no present coordinate.
func nanEuclidean(a, b []float64) float64 {
	var sum float64
	var present int
	for i := range a {
		if frame.IsMissing(a[i]) || frame.IsMissing(b[i]) {
			continue
		}
		diff := a[i] - b[i]
		sum += diff * diff
		present++
	}
	if present == 0 {
		return math.NaN()
	}
	return math.Sqrt(float64(len(a)) / float64(present) * sum)
}
