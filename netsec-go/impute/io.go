package impute

import (
	"fmt"

	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/tinylib/msgp/msgp"
)

// EncodeMsg implements msgp.Encodable
func (k *KNNImputer) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(4); err != nil {
		return err
	}
	if err := w.WriteInt(k.NNeighbors); err != nil {
		return err
	}
	if err := w.WriteString(k.Weights); err != nil {
		return err
	}
	if err := frame.WriteFloats(w, k.means); err != nil {
		return err
	}
	return k.fit.EncodeMsg(w)
}

// DecodeMsg implements msgp.Decodable
func (k *KNNImputer) DecodeMsg(r *msgp.Reader) error {
	sz, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	if sz != 4 {
		return fmt.Errorf("imputer has %d fields, expected 4", sz)
	}
	if k.NNeighbors, err = r.ReadInt(); err != nil {
		return err
	}
	if k.Weights, err = r.ReadString(); err != nil {
		return err
	}
	if k.means, err = frame.ReadFloats(r); err != nil {
		return err
	}
	return k.fit.DecodeMsg(r)
}
