package classifier

import (
	"fmt"

	"github.com/netsec-ml/netsec/netsec-golib/decisiontree"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/tinylib/msgp/msgp"
)

func readHeader(r *msgp.Reader, want uint32, what string) error {
	sz, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	if sz != want {
		return fmt.Errorf("%s has %d fields, expected %d", what, sz, want)
	}
	return nil
}

func (tp treeParams) encode(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(6); err != nil {
		return err
	}
	for _, s := range []string{tp.Criterion, tp.Splitter, tp.MaxFeatures} {
		if err := w.WriteString(s); err != nil {
			return err
		}
	}
	for _, n := range []int{tp.MaxDepth, tp.MinSamplesSplit, tp.MinSamplesLeaf} {
		if err := w.WriteInt(n); err != nil {
			return err
		}
	}
	return nil
}

func (tp *treeParams) decode(r *msgp.Reader) error {
	if err := readHeader(r, 6, "tree params"); err != nil {
		return err
	}
	for _, s := range []*string{&tp.Criterion, &tp.Splitter, &tp.MaxFeatures} {
		v, err := r.ReadString()
		if err != nil {
			return err
		}
		*s = v
	}
	for _, n := range []*int{&tp.MaxDepth, &tp.MinSamplesSplit, &tp.MinSamplesLeaf} {
		v, err := r.ReadInt()
		if err != nil {
			return err
		}
		*n = v
	}
	return nil
}

// EncodeMsg implements msgp.Encodable
func (t *DecisionTree) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(3); err != nil {
		return err
	}
	if err := t.Params.encode(w); err != nil {
		return err
	}
	if err := w.WriteInt64(t.Seed); err != nil {
		return err
	}
	return t.Tree.EncodeMsg(w)
}

// DecodeMsg implements msgp.Decodable
func (t *DecisionTree) DecodeMsg(r *msgp.Reader) error {
	if err := readHeader(r, 3, "decision tree"); err != nil {
		return err
	}
	if err := t.Params.decode(r); err != nil {
		return err
	}
	var err error
	if t.Seed, err = r.ReadInt64(); err != nil {
		return err
	}
	return t.Tree.DecodeMsg(r)
}

// EncodeMsg implements msgp.Encodable
func (f *RandomForest) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(5); err != nil {
		return err
	}
	if err := w.WriteInt(f.NEstimators); err != nil {
		return err
	}
	if err := w.WriteBool(f.Bootstrap); err != nil {
		return err
	}
	if err := f.Params.encode(w); err != nil {
		return err
	}
	if err := w.WriteInt64(f.Seed); err != nil {
		return err
	}
	return f.Ensemble.EncodeMsg(w)
}

// DecodeMsg implements msgp.Decodable
func (f *RandomForest) DecodeMsg(r *msgp.Reader) error {
	if err := readHeader(r, 5, "random forest"); err != nil {
		return err
	}
	var err error
	if f.NEstimators, err = r.ReadInt(); err != nil {
		return err
	}
	if f.Bootstrap, err = r.ReadBool(); err != nil {
		return err
	}
	if err := f.Params.decode(r); err != nil {
		return err
	}
	if f.Seed, err = r.ReadInt64(); err != nil {
		return err
	}
	return f.Ensemble.DecodeMsg(r)
}

// EncodeMsg implements msgp.Encodable
func (g *GradientBoosting) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(7); err != nil {
		return err
	}
	if err := w.WriteInt(g.NEstimators); err != nil {
		return err
	}
	if err := w.WriteFloat64(g.LearningRate); err != nil {
		return err
	}
	if err := w.WriteFloat64(g.Subsample); err != nil {
		return err
	}
	if err := g.Params.encode(w); err != nil {
		return err
	}
	if err := w.WriteInt64(g.Seed); err != nil {
		return err
	}
	if err := w.WriteFloat64(g.Init); err != nil {
		return err
	}
	return g.Ensemble.EncodeMsg(w)
}

// DecodeMsg implements msgp.Decodable
func (g *GradientBoosting) DecodeMsg(r *msgp.Reader) error {
	if err := readHeader(r, 7, "gradient boosting"); err != nil {
		return err
	}
	var err error
	if g.NEstimators, err = r.ReadInt(); err != nil {
		return err
	}
	if g.LearningRate, err = r.ReadFloat64(); err != nil {
		return err
	}
	if g.Subsample, err = r.ReadFloat64(); err != nil {
		return err
	}
	if err := g.Params.decode(r); err != nil {
		return err
	}
	if g.Seed, err = r.ReadInt64(); err != nil {
		return err
	}
	if g.Init, err = r.ReadFloat64(); err != nil {
		return err
	}
	return g.Ensemble.DecodeMsg(r)
}

// EncodeMsg implements msgp.Encodable
func (a *AdaBoost) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(4); err != nil {
		return err
	}
	if err := w.WriteInt(a.NEstimators); err != nil {
		return err
	}
	if err := w.WriteFloat64(a.LearningRate); err != nil {
		return err
	}
	if err := frame.WriteFloats(w, a.Alphas); err != nil {
		return err
	}
	ens := decisiontree.Ensemble{Trees: a.Trees}
	return ens.EncodeMsg(w)
}

// DecodeMsg implements msgp.Decodable
func (a *AdaBoost) DecodeMsg(r *msgp.Reader) error {
	if err := readHeader(r, 4, "adaboost"); err != nil {
		return err
	}
	var err error
	if a.NEstimators, err = r.ReadInt(); err != nil {
		return err
	}
	if a.LearningRate, err = r.ReadFloat64(); err != nil {
		return err
	}
	if a.Alphas, err = frame.ReadFloats(r); err != nil {
		return err
	}
	var ens decisiontree.Ensemble
	if err := ens.DecodeMsg(r); err != nil {
		return err
	}
	if len(ens.Trees) != len(a.Alphas) {
		return fmt.Errorf("adaboost has %d trees but %d weights", len(ens.Trees), len(a.Alphas))
	}
	a.Trees = ens.Trees
	return nil
}

// EncodeMsg implements msgp.Encodable
func (l *LogisticRegression) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(5); err != nil {
		return err
	}
	if err := w.WriteFloat64(l.C); err != nil {
		return err
	}
	if err := w.WriteInt(l.MaxIter); err != nil {
		return err
	}
	if err := w.WriteFloat64(l.Tol); err != nil {
		return err
	}
	if err := frame.WriteFloats(w, l.Coef); err != nil {
		return err
	}
	return w.WriteFloat64(l.Intercept)
}

// DecodeMsg implements msgp.Decodable
func (l *LogisticRegression) DecodeMsg(r *msgp.Reader) error {
	if err := readHeader(r, 5, "logistic regression"); err != nil {
		return err
	}
	var err error
	if l.C, err = r.ReadFloat64(); err != nil {
		return err
	}
	if l.MaxIter, err = r.ReadInt(); err != nil {
		return err
	}
	if l.Tol, err = r.ReadFloat64(); err != nil {
		return err
	}
	if l.Coef, err = frame.ReadFloats(r); err != nil {
		return err
	}
	l.Intercept, err = r.ReadFloat64()
	return err
}
