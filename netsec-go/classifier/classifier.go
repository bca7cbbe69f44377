// Package classifier implements the binary classifier families compared during training.
// Every family predicts labels in {0, 1}.
package classifier

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/tinylib/msgp/msgp"
)

// Classifier is a model that can be fit and then used to label rows.
type Classifier interface {
	Fit(x frame.Matrix, y []float64) error
	Predict(x frame.Matrix) ([]float64, error)
	// Kind identifies the concrete type in serialized bundles
	Kind() string
	msgp.Encodable
	msgp.Decodable
}

// Kinds of the concrete classifiers
const (
	KindRandomForest       = "random_forest"
	KindDecisionTree       = "decision_tree"
	KindGradientBoosting   = "gradient_boosting"
	KindLogisticRegression = "logistic_regression"
	KindAdaBoost           = "adaboost"
)

// Family is a named model family constructed from hyperparameters.
type Family struct {
	Name string
	Kind string
	New  func(p Params, seed int64) (Classifier, error)
}

// Catalog lists the families in declaration order; ties in model selection go to the earlier family.
var Catalog = []Family{
	{Name: "Random Forest", Kind: KindRandomForest, New: newRandomForest},
	{Name: "Decision Tree", Kind: KindDecisionTree, New: newDecisionTree},
	{Name: "Gradient Boosting", Kind: KindGradientBoosting, New: newGradientBoosting},
	{Name: "Logistic Regression", Kind: KindLogisticRegression, New: newLogisticRegression},
	{Name: "AdaBoost", Kind: KindAdaBoost, New: newAdaBoost},
}

// Lookup finds a catalog family by name.
func Lookup(name string) (Family, bool) {
	for _, f := range Catalog {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}

// ForKind returns an empty classifier of the given kind, ready to be decoded into.
func ForKind(kind string) (Classifier, error) {
	switch kind {
	case KindRandomForest:
		return &RandomForest{}, nil
	case KindDecisionTree:
		return &DecisionTree{}, nil
	case KindGradientBoosting:
		return &GradientBoosting{}, nil
	case KindLogisticRegression:
		return &LogisticRegression{}, nil
	case KindAdaBoost:
		return &AdaBoost{}, nil
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", kind)
	}
}

// Params are the hyperparameters of one candidate, as read from the model params file.
type Params map[string]interface{}

// Key renders the params as sorted name=value pairs.
func (p Params) Key() string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return strings.Join(parts, ",")
}

func (p Params) check(allowed ...string) error {
	ok := make(map[string]bool)
	for _, a := range allowed {
		ok[a] = true
	}
	for k := range p {
		if !ok[k] {
			return fmt.Errorf("unknown parameter %s", k)
		}
	}
	return nil
}

// Int returns an integer parameter, accepting integral floats.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t == math.Trunc(t) {
			return int(t), nil
		}
	}
	return 0, fmt.Errorf("parameter %s: expected an integer, got %v", name, v)
}

// Float returns a real parameter, accepting integers.
func (p Params) Float(name string, def float64) (float64, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	}
	return 0, fmt.Errorf("parameter %s: expected a number, got %v", name, v)
}

// Str returns a parameter rendered as a string. Absent and null values give def.
func (p Params) Str(name, def string) string {
	v, ok := p[name]
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

func checkLabels(x frame.Matrix, y []float64) error {
	if len(x) == 0 {
		return fmt.Errorf("no training rows")
	}
	if len(x) != len(y) {
		return fmt.Errorf("got %d rows but %d labels", len(x), len(y))
	}
	if x.HasMissing() {
		return fmt.Errorf("training rows contain missing values")
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("label %d is %v, expected 0 or 1", i, v)
		}
	}
	return nil
}

func checkFeatures(x frame.Matrix, features int) error {
	if features == 0 {
		return errNotFitted
	}
	for i, row := range x {
		if len(row) != features {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), features)
		}
	}
	return nil
}

// maxFeatures resolves sqrt, log2, all, an integer count or a fraction against n features.
func maxFeatures(setting string, n int) (int, error) {
	switch setting {
	case "", "all", "None", "null":
		return n, nil
	case "sqrt", "auto":
		return atLeastOne(int(math.Sqrt(float64(n)))), nil
	case "log2":
		return atLeastOne(int(math.Log2(float64(n)))), nil
	}
	if k, err := strconv.Atoi(setting); err == nil {
		if k < 1 {
			return 0, fmt.Errorf("max_features must be positive, got %d", k)
		}
		if k > n {
			k = n
		}
		return k, nil
	}
	if f, err := strconv.ParseFloat(setting, 64); err == nil && f > 0 && f <= 1 {
		return atLeastOne(int(f * float64(n))), nil
	}
	return 0, fmt.Errorf("invalid max_features %q", setting)
}

func atLeastOne(k int) int {
	if k < 1 {
		return 1
	}
	return k
}

func label(p float64) float64 {
	if p > 0.5 {
		return 1
	}
	return 0
}

var errNotFitted = fmt.Errorf("model is not fitted")

func errUnsupported(name string, v interface{}) error {
	return fmt.Errorf("unsupported value %v for parameter %s", v, name)
}
