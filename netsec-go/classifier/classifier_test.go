package classifier

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/netsec-ml/netsec/netsec-golib/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// phishingLike draws rows of {-1,0,1} features labelled by a noisy linear rule.
func phishingLike(n int, seed int64) (frame.Matrix, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make(frame.Matrix, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = make([]float64, 6)
		for j := range x[i] {
			x[i][j] = float64(rng.Intn(3) - 1)
		}
		if x[i][0]+x[i][1]-x[i][2] > 0 {
			y[i] = 1
		}
		if rng.Float64() < 0.05 {
			y[i] = 1 - y[i]
		}
	}
	return x, y
}

var smallParams = map[string]Params{
	"Random Forest":       {"n_estimators": 10},
	"Decision Tree":       {"max_depth": 4},
	"Gradient Boosting":   {"n_estimators": 20, "subsample": 0.8},
	"Logistic Regression": {"C": 1.0},
	"AdaBoost":            {"n_estimators": 20, "learning_rate": 0.5},
}

func TestCatalogOrder(t *testing.T) {
	var names []string
	for _, f := range Catalog {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Random Forest", "Decision Tree", "Gradient Boosting", "Logistic Regression", "AdaBoost"}, names)
}

func TestFamiliesLearn(t *testing.T) {
	x, y := phishingLike(200, 1)
	xt, yt := phishingLike(100, 2)
	for _, fam := range Catalog {
		model, err := fam.New(smallParams[fam.Name], 7)
		require.NoError(t, err, fam.Name)
		require.NoError(t, model.Fit(x, y), fam.Name)

		pred, err := model.Predict(xt)
		require.NoError(t, err, fam.Name)
		require.Len(t, pred, len(xt))
		for _, p := range pred {
			require.True(t, p == 0 || p == 1, fam.Name)
		}
		assert.True(t, Accuracy(yt, pred) > 0.75, "%s accuracy %v", fam.Name, Accuracy(yt, pred))
	}
}

func TestFamiliesDeterministic(t *testing.T) {
	x, y := phishingLike(150, 3)
	for _, fam := range Catalog {
		var preds [][]float64
		for i := 0; i < 2; i++ {
			model, err := fam.New(smallParams[fam.Name], 11)
			require.NoError(t, err)
			require.NoError(t, model.Fit(x, y))
			pred, err := model.Predict(x)
			require.NoError(t, err)
			preds = append(preds, pred)
		}
		assert.Equal(t, preds[0], preds[1], fam.Name)
	}
}

func TestEncodeDecode(t *testing.T) {
	x, y := phishingLike(120, 4)
	dir := t.TempDir()
	for _, fam := range Catalog {
		model, err := fam.New(smallParams[fam.Name], 5)
		require.NoError(t, err)
		require.NoError(t, model.Fit(x, y))

		path := filepath.Join(dir, fam.Kind+".bin")
		require.NoError(t, serialization.Encode(path, model))

		decoded, err := ForKind(fam.Kind)
		require.NoError(t, err)
		require.NoError(t, serialization.Decode(path, decoded), fam.Name)

		want, err := model.Predict(x)
		require.NoError(t, err)
		got, err := decoded.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, want, got, fam.Name)
	}
	_, err := ForKind("svm")
	assert.Error(t, err)
}

func TestParamErrors(t *testing.T) {
	for _, tc := range []struct {
		family string
		params Params
	}{
		{"Decision Tree", Params{"criterion": "hinge"}},
		{"Decision Tree", Params{"max_depth": 2.5}},
		{"Decision Tree", Params{"depth": 2}},
		{"Random Forest", Params{"max_features": "cube"}},
		{"Gradient Boosting", Params{"subsample": 1.5}},
		{"Gradient Boosting", Params{"criterion": "gini"}},
		{"Logistic Regression", Params{"C": 0}},
		{"Logistic Regression", Params{"penalty": "l1"}},
		{"AdaBoost", Params{"learning_rate": "fast"}},
	} {
		fam, ok := Lookup(tc.family)
		require.True(t, ok)
		_, err := fam.New(tc.params, 0)
		assert.Error(t, err, "%s %v", tc.family, tc.params)
	}
}

func TestFitErrors(t *testing.T) {
	model, err := newDecisionTree(Params{}, 0)
	require.NoError(t, err)
	assert.Error(t, model.Fit(frame.Matrix{{1}, {2}}, []float64{-1, 1}), "labels must be 0 or 1")
	assert.Error(t, model.Fit(frame.Matrix{{frame.Missing}, {2}}, []float64{0, 1}))
	_, err = model.Predict(frame.Matrix{{1}})
	assert.Error(t, err, "not fitted")
}

func TestMaxFeatures(t *testing.T) {
	for setting, want := range map[string]int{"sqrt": 5, "log2": 4, "all": 30, "": 30, "7": 7, "100": 30, "0.5": 15} {
		got, err := maxFeatures(setting, 30)
		require.NoError(t, err, setting)
		assert.Equal(t, want, got, setting)
	}
	_, err := maxFeatures("0", 30)
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	m, err := Score([]float64{1, 1, 0, 0, 1}, []float64{1, 0, 1, 0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 2./3, m.Precision, 1e-12)
	assert.InDelta(t, 2./3, m.Recall, 1e-12)
	assert.InDelta(t, 2./3, m.F1, 1e-12)

	m, err = Score([]float64{1, 0}, []float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, Metric{}, m)

	_, err = Score([]float64{1}, nil)
	assert.Error(t, err)
}

func TestAccuracyAndR2(t *testing.T) {
	assert.Equal(t, 0.75, Accuracy([]float64{1, 0, 1, 1}, []float64{1, 0, 0, 1}))
	assert.Equal(t, 1., R2([]float64{1, 0, 1}, []float64{1, 0, 1}))
	assert.InDelta(t, -1., R2([]float64{1, 0, 1, 0}, []float64{0, 1, 1, 0}), 1e-12)
	assert.Equal(t, 0., R2([]float64{1, 1}, []float64{1, 0}))

	for _, name := range []string{"f1", "accuracy", "r2"} {
		_, err := Scorer(name)
		assert.NoError(t, err)
	}
	_, err := Scorer("roc_auc")
	assert.Error(t, err)
}

func TestGridExpand(t *testing.T) {
	g := Grid{
		"n_estimators":  {8, 16},
		"learning_rate": {0.1, 0.01, 0.001},
	}
	got := g.Expand()
	require.Len(t, got, 6)
	assert.Equal(t, Params{"learning_rate": 0.1, "n_estimators": 8}, got[0])
	assert.Equal(t, Params{"learning_rate": 0.1, "n_estimators": 16}, got[1])
	assert.Equal(t, Params{"learning_rate": 0.01, "n_estimators": 8}, got[2])
	assert.Equal(t, Params{"learning_rate": 0.001, "n_estimators": 16}, got[5])

	assert.Equal(t, []Params{{}}, Grid(nil).Expand())
}

func TestStratifiedFolds(t *testing.T) {
	folds, err := StratifiedFolds([]float64{0, 0, 0, 0, 1, 1, 1, 1, 1, 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 2, 0, 0, 1, 1, 2, 2}, folds)

	_, err = StratifiedFolds([]float64{0, 1}, 3)
	assert.Error(t, err)
}

func TestGridSearch(t *testing.T) {
	x, y := phishingLike(150, 6)
	fam, _ := Lookup("Decision Tree")
	grid := Grid{"max_depth": {1, 3}, "criterion": {"gini", "entropy"}}

	serial, err := GridSearch(context.Background(), fam, grid, x, y, SearchOptions{Folds: 3, Seed: 1, Workers: 1})
	require.NoError(t, err)
	parallel, err := GridSearch(context.Background(), fam, grid, x, y, SearchOptions{Folds: 3, Seed: 1, Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, serial.Params, parallel.Params)
	assert.Equal(t, serial.CVScore, parallel.CVScore)
	assert.Equal(t, 3, serial.Params["max_depth"])
	assert.True(t, serial.CVScore > 0.7)

	_, err = GridSearch(context.Background(), fam, Grid{"max_depth": {"deep"}}, x, y, SearchOptions{Folds: 3})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = GridSearch(ctx, fam, grid, x, y, SearchOptions{Folds: 3})
	assert.Error(t, err)
}

func TestEvaluateAndSelect(t *testing.T) {
	x, y := phishingLike(150, 8)
	xt, yt := phishingLike(60, 9)
	grids := make(map[string]Grid)
	for name, p := range smallParams {
		g := Grid{}
		for k, v := range p {
			g[k] = []interface{}{v}
		}
		grids[name] = g
	}
	reports, err := EvaluateModels(context.Background(), Catalog, grids, x, y, xt, yt, EvaluateOptions{
		Scoring:       "f1",
		SearchOptions: SearchOptions{Folds: 3, Seed: 2, Workers: 2},
	})
	require.NoError(t, err)
	require.Len(t, reports, len(Catalog))
	for i, r := range reports {
		assert.Equal(t, Catalog[i].Name, r.Name)
		assert.NoError(t, r.Err)
	}
	scores := Scores(reports)
	assert.Len(t, scores, len(Catalog))

	best, err := SelectBest(reports)
	require.NoError(t, err)
	for _, s := range scores {
		assert.True(t, best.TestScore >= s)
	}
	again, err := SelectBest(reports)
	require.NoError(t, err)
	assert.Equal(t, best.Name, again.Name)

	_, err = EvaluateModels(context.Background(), Catalog, map[string]Grid{"SVM": {}}, x, y, xt, yt, EvaluateOptions{Scoring: "f1", SearchOptions: SearchOptions{Folds: 3}})
	assert.Error(t, err)
}

func TestSelectBestTies(t *testing.T) {
	dt := &DecisionTree{}
	reports := []Report{
		{Name: "Random Forest", TestScore: 0.8, Model: dt},
		{Name: "Decision Tree", TestScore: 0.9, Model: dt},
		{Name: "Gradient Boosting", Err: assert.AnError},
		{Name: "Logistic Regression", TestScore: 0.9, Model: dt},
	}
	for i := 0; i < 5; i++ {
		best, err := SelectBest(reports)
		require.NoError(t, err)
		assert.Equal(t, "Decision Tree", best.Name)
	}

	_, err := SelectBest([]Report{{Name: "AdaBoost", Err: assert.AnError}})
	assert.Error(t, err)
}

// brittleTree fails to fit when its "fail" parameter is set.
type brittleTree struct {
	Classifier
	fail bool
}

func (b *brittleTree) Fit(x frame.Matrix, y []float64) error {
	if b.fail {
		return fmt.Errorf("no better than chance")
	}
	return b.Classifier.Fit(x, y)
}

var brittleFamily = Family{
	Name: "Brittle Tree",
	Kind: KindDecisionTree,
	New: func(p Params, seed int64) (Classifier, error) {
		fail := p["fail"] == true
		rest := make(Params)
		for k, v := range p {
			if k != "fail" {
				rest[k] = v
			}
		}
		c, err := newDecisionTree(rest, seed)
		if err != nil {
			return nil, err
		}
		return &brittleTree{Classifier: c, fail: fail}, nil
	},
}

func TestGridSearchSkipsFailingCandidates(t *testing.T) {
	x, y := phishingLike(90, 3)

	res, err := GridSearch(context.Background(), brittleFamily, Grid{"fail": {true, false}}, x, y, SearchOptions{Folds: 3, Seed: 1, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, false, res.Params["fail"])
	assert.True(t, res.CVScore > 0)

	_, err = GridSearch(context.Background(), brittleFamily, Grid{"fail": {true}}, x, y, SearchOptions{Folds: 3, Seed: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no better than chance")
}
