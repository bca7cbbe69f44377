package validate

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the non-missing values of a column.
type Summary struct {
	Count  int     `yaml:"count"`
	Mean   float64 `yaml:"mean"`
	Median float64 `yaml:"median"`
	StdDev float64 `yaml:"std_dev"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
}

// ColumnDrift is the two-sample comparison of one column.
type ColumnDrift struct {
	Column    string  `yaml:"column"`
	Statistic float64 `yaml:"statistic"`
	PValue    float64 `yaml:"p_value"`
	Drift     bool    `yaml:"drift_status"`
	Train     Summary `yaml:"train"`
	Test      Summary `yaml:"test"`
}

// DriftReport compares the train and test distribution of every shared column.
// Drift is advisory and never fails validation.
type DriftReport struct {
	Threshold     float64       `yaml:"threshold"`
	DriftDetected bool          `yaml:"drift_detected"`
	Columns       []ColumnDrift `yaml:"columns"`
}

// DetectDrift applies a two-sample Kolmogorov-Smirnov test to each column present in
// both frames, in train column order. A column drifts when its p-value is below threshold.
func DetectDrift(train, test *frame.Frame, threshold float64) DriftReport {
	report := DriftReport{Threshold: threshold}
	for _, name := range train.Columns {
		if test.ColumnIndex(name) < 0 {
			continue
		}
		a, _ := train.Column(name)
		b, _ := test.Column(name)
		x, y := present(a), present(b)

		cd := ColumnDrift{Column: name, PValue: 1, Train: summarize(x), Test: summarize(y)}
		if len(x) > 0 && len(y) > 0 {
			cd.Statistic = stat.KolmogorovSmirnov(x, nil, y, nil)
			cd.PValue = ksPValue(cd.Statistic, len(x), len(y))
		}
		cd.Drift = cd.PValue < threshold
		report.DriftDetected = report.DriftDetected || cd.Drift
		report.Columns = append(report.Columns, cd)
	}
	return report
}

// present returns the sorted non-missing values of xs.
func present(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !frame.IsMissing(v) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func summarize(xs []float64) Summary {
	s := Summary{Count: len(xs)}
	if len(xs) == 0 {
		return s
	}
	data := stats.Float64Data(xs)
	s.Mean, _ = data.Mean()
	s.Median, _ = data.Median()
	s.StdDev, _ = data.StandardDeviation()
	s.Min, _ = data.Min()
	s.Max, _ = data.Max()
	return s
}

// ksPValue is the asymptotic two-sided p-value of the two-sample statistic d.
func ksPValue(d float64, n, m int) float64 {
	en := math.Sqrt(float64(n) * float64(m) / float64(n+m))
	lambda := (en + 0.12 + 0.11/en) * d
	return kolmogorovQ(lambda)
}

// kolmogorovQ computes Q(l) = 2 sum_{j>=1} (-1)^(j-1) exp(-2 j^2 l^2).
func kolmogorovQ(lambda float64) float64 {
	const (
		eps1 = 1e-3
		eps2 = 1e-8
	)
	a2 := -2 * lambda * lambda
	fac := 2.0
	var sum, prev float64
	for j := 1; j <= 100; j++ {
		term := fac * math.Exp(a2*float64(j*j))
		sum += term
		if math.Abs(term) <= eps1*prev || math.Abs(term) <= eps2*sum {
			return math.Min(math.Max(sum, 0), 1)
		}
		fac = -fac
		prev = math.Abs(term)
	}
	// the series does not converge for tiny lambda, where Q tends to 1
	return 1
}
