// Package bundle pairs a fitted preprocessor with a fitted classifier behind a single Predict call.
package bundle

import (
	"fmt"

	"github.com/netsec-ml/netsec/netsec-go/classifier"
	"github.com/netsec-ml/netsec/netsec-go/impute"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/netsec-ml/netsec/netsec-golib/serialization"
	"github.com/tinylib/msgp/msgp"
)

// Version of the bundle encoding
const Version = 1

// KindKNNImputer is the only preprocessor kind
const KindKNNImputer = "knn_imputer"

// Bundle is the prediction artifact produced by training.
type Bundle struct {
	Preprocessor *impute.KNNImputer
	Model        classifier.Classifier
}

// New creates a bundle.
func New(pre *impute.KNNImputer, model classifier.Classifier) *Bundle {
	return &Bundle{Preprocessor: pre, Model: model}
}

// Predict imputes missing values in x and returns a label in {0, 1} per row.
func (b *Bundle) Predict(x frame.Matrix) ([]float64, error) {
	if b.Preprocessor == nil || b.Model == nil {
		return nil, errors.E(errors.PredictionError, nil, "bundle is incomplete")
	}
	xt, err := b.Preprocessor.Transform(x)
	if err != nil {
		return nil, errors.E(errors.PredictionError, err, "preprocessing %d rows", len(x))
	}
	y, err := b.Model.Predict(xt)
	if err != nil {
		return nil, errors.E(errors.PredictionError, err, "predicting %d rows with %s", len(x), b.Model.Kind())
	}
	return y, nil
}

// Save writes the bundle to a local or s3 path ending in .bin.
func Save(path string, b *Bundle) error {
	return serialization.Encode(path, b)
}

// Load reads a bundle written by Save.
func Load(path string) (*Bundle, error) {
	var b Bundle
	if err := serialization.Decode(path, &b); err != nil {
		return nil, errors.E(errors.PredictionError, err, "loading bundle %s", path)
	}
	return &b, nil
}

// Model is the encoding of a classifier on its own, tagged with its kind.
type Model struct {
	classifier.Classifier
}

// SaveModel writes a classifier on its own.
func SaveModel(path string, c classifier.Classifier) error {
	return serialization.Encode(path, &Model{c})
}

// SavePreprocessor writes a fitted imputer on its own.
func SavePreprocessor(path string, pre *impute.KNNImputer) error {
	return serialization.Encode(path, pre)
}

// LoadPair builds a bundle from a model written by SaveModel and a preprocessor
// written by SavePreprocessor.
func LoadPair(modelPath, preprocessorPath string) (*Bundle, error) {
	var m Model
	if err := serialization.Decode(modelPath, &m); err != nil {
		return nil, errors.E(errors.PredictionError, err, "loading model %s", modelPath)
	}
	var pre impute.KNNImputer
	if err := serialization.Decode(preprocessorPath, &pre); err != nil {
		return nil, errors.E(errors.PredictionError, err, "loading preprocessor %s", preprocessorPath)
	}
	return New(&pre, m.Classifier), nil
}

// EncodeMsg implements msgp.Encodable
func (m *Model) EncodeMsg(w *msgp.Writer) error {
	if m.Classifier == nil {
		return fmt.Errorf("no model to encode")
	}
	if err := w.WriteMapHeader(2); err != nil {
		return err
	}
	if err := w.WriteString("kind"); err != nil {
		return err
	}
	if err := w.WriteString(m.Kind()); err != nil {
		return err
	}
	if err := w.WriteString("state"); err != nil {
		return err
	}
	return m.Classifier.EncodeMsg(w)
}

// DecodeMsg implements msgp.Decodable
func (m *Model) DecodeMsg(r *msgp.Reader) error {
	kind, err := decodeTagged(r, func(kind string) (msgp.Decodable, error) {
		c, err := classifier.ForKind(kind)
		if err != nil {
			return nil, err
		}
		m.Classifier = c
		return c, nil
	})
	if err != nil {
		return err
	}
	if m.Classifier == nil {
		return fmt.Errorf("model of kind %q has no state", kind)
	}
	return nil
}

// decodeTagged reads a {kind, state} map, using build to pick the state type from the kind.
func decodeTagged(r *msgp.Reader, build func(kind string) (msgp.Decodable, error)) (string, error) {
	n, err := r.ReadMapHeader()
	if err != nil {
		return "", err
	}
	var kind string
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return "", err
		}
		switch key {
		case "kind":
			if kind, err = r.ReadString(); err != nil {
				return "", err
			}
		case "state":
			if kind == "" {
				return "", fmt.Errorf("state precedes kind")
			}
			d, err := build(kind)
			if err != nil {
				return "", err
			}
			if err := d.DecodeMsg(r); err != nil {
				return "", fmt.Errorf("decoding %s: %v", kind, err)
			}
		default:
			if err := r.Skip(); err != nil {
				return "", err
			}
		}
	}
	return kind, nil
}

// EncodeMsg implements msgp.Encodable
func (b *Bundle) EncodeMsg(w *msgp.Writer) error {
	if b.Preprocessor == nil || b.Model == nil {
		return fmt.Errorf("bundle is incomplete")
	}
	if err := w.WriteMapHeader(3); err != nil {
		return err
	}
	if err := w.WriteString("version"); err != nil {
		return err
	}
	if err := w.WriteInt(Version); err != nil {
		return err
	}

	if err := w.WriteString("preprocessor"); err != nil {
		return err
	}
	if err := w.WriteMapHeader(2); err != nil {
		return err
	}
	if err := w.WriteString("kind"); err != nil {
		return err
	}
	if err := w.WriteString(KindKNNImputer); err != nil {
		return err
	}
	if err := w.WriteString("state"); err != nil {
		return err
	}
	if err := b.Preprocessor.EncodeMsg(w); err != nil {
		return err
	}

	if err := w.WriteString("model"); err != nil {
		return err
	}
	return (&Model{b.Model}).EncodeMsg(w)
}

// DecodeMsg implements msgp.Decodable
func (b *Bundle) DecodeMsg(r *msgp.Reader) error {
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	version := -1
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return err
		}
		switch key {
		case "version":
			if version, err = r.ReadInt(); err != nil {
				return err
			}
			if version != Version {
				return fmt.Errorf("unsupported bundle version %d", version)
			}
		case "preprocessor":
			_, err := decodeTagged(r, func(kind string) (msgp.Decodable, error) {
				if kind != KindKNNImputer {
					return nil, fmt.Errorf("unknown preprocessor kind %q", kind)
				}
				b.Preprocessor = &impute.KNNImputer{}
				return b.Preprocessor, nil
			})
			if err != nil {
				return err
			}
		case "model":
			var m Model
			if err := m.DecodeMsg(r); err != nil {
				return err
			}
			b.Model = m.Classifier
		default:
			if err := r.Skip(); err != nil {
				return err
			}
		}
	}
	if version < 0 {
		return fmt.Errorf("bundle has no version")
	}
	if b.Preprocessor == nil || b.Model == nil {
		return fmt.Errorf("bundle is incomplete")
	}
	return nil
}
