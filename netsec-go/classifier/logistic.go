package classifier

import (
	"math"

	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression minimizes sum(log loss) + |w|^2/(2C) with damped Newton steps.
// The intercept is not penalized.
type LogisticRegression struct {
	C       float64
	MaxIter int
	Tol     float64

	Coef      []float64
	Intercept float64
}

func newLogisticRegression(p Params, seed int64) (Classifier, error) {
	if err := p.check("C", "max_iter", "tol", "penalty", "solver"); err != nil {
		return nil, err
	}
	if penalty := p.Str("penalty", "l2"); penalty != "l2" {
		return nil, errUnsupported("penalty", penalty)
	}
	l := &LogisticRegression{}
	var err error
	if l.C, err = p.Float("C", 1.0); err != nil {
		return nil, err
	}
	if l.MaxIter, err = p.Int("max_iter", 100); err != nil {
		return nil, err
	}
	if l.Tol, err = p.Float("tol", 1e-4); err != nil {
		return nil, err
	}
	if l.C <= 0 {
		return nil, errUnsupported("C", l.C)
	}
	if l.MaxIter < 1 {
		return nil, errUnsupported("max_iter", l.MaxIter)
	}
	return l, nil
}

// Kind implements Classifier
func (l *LogisticRegression) Kind() string { return KindLogisticRegression }

// objective evaluates the penalized loss at beta, whose last element is the intercept.
func (l *LogisticRegression) objective(x frame.Matrix, y, beta []float64) float64 {
	d := len(beta) - 1
	var loss float64
	for i, row := range x {
		z := floats.Dot(beta[:d], row) + beta[d]
		// log(1 + exp(z)) - y*z
		loss += softplus(z) - y[i]*z
	}
	return loss + floats.Dot(beta[:d], beta[:d])/(2*l.C)
}

// Fit implements Classifier
func (l *LogisticRegression) Fit(x frame.Matrix, y []float64) error {
	if err := checkLabels(x, y); err != nil {
		return err
	}
	d := len(x[0])
	beta := make([]float64, d+1)
	grad := make([]float64, d+1)
	xi := make([]float64, d+1)
	xi[d] = 1

	for iter := 0; iter < l.MaxIter; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		// upper triangle of the row-major Hessian
		h := make([]float64, (d+1)*(d+1))
		for i, row := range x {
			copy(xi, row)
			p := sigmoid(floats.Dot(beta, xi))
			floats.AddScaled(grad, p-y[i], xi)
			w := p * (1 - p)
			for a := 0; a <= d; a++ {
				if xi[a] == 0 {
					continue
				}
				floats.AddScaled(h[a*(d+1)+a:(a+1)*(d+1)], w*xi[a], xi[a:])
			}
		}
		for j := 0; j < d; j++ {
			grad[j] += beta[j] / l.C
			h[j*(d+1)+j] += 1 / l.C
		}
		h[d*(d+1)+d] += 1e-10
		hess := mat.NewSymDense(d+1, h)

		step := make([]float64, d+1)
		var chol mat.Cholesky
		if chol.Factorize(hess) {
			var sv mat.VecDense
			if err := chol.SolveVecTo(&sv, mat.NewVecDense(d+1, append([]float64(nil), grad...))); err == nil {
				for j := range step {
					step[j] = sv.AtVec(j)
				}
			} else {
				copy(step, grad)
			}
		} else {
			copy(step, grad)
		}

		// backtracking keeps every step a descent step
		f0 := l.objective(x, y, beta)
		slope := floats.Dot(grad, step)
		t := 1.0
		next := make([]float64, d+1)
		for {
			copy(next, beta)
			floats.AddScaled(next, -t, step)
			if l.objective(x, y, next) <= f0-1e-4*t*slope || t < 1e-10 {
				break
			}
			t /= 2
		}
		copy(beta, next)

		if t*floats.Norm(step, math.Inf(1)) < l.Tol {
			break
		}
	}
	l.Coef = beta[:d]
	l.Intercept = beta[d]
	return nil
}

// Predict implements Classifier
func (l *LogisticRegression) Predict(x frame.Matrix) ([]float64, error) {
	if err := checkFeatures(x, len(l.Coef)); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if floats.Dot(l.Coef, row)+l.Intercept > 0 {
			out[i] = 1
		}
	}
	return out, nil
}

func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
