package decisiontree

import (
	"fmt"

	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"github.com/tinylib/msgp/msgp"
)

// EncodeMsg implements msgp.Encodable
func (n Node) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(6); err != nil {
		return err
	}
	if err := w.WriteInt(n.FeatureIndex); err != nil {
		return err
	}
	if err := w.WriteFloat64(n.Threshold); err != nil {
		return err
	}
	if err := w.WriteInt(n.LeftChild); err != nil {
		return err
	}
	if err := w.WriteBool(n.LeftIsLeaf); err != nil {
		return err
	}
	if err := w.WriteInt(n.RightChild); err != nil {
		return err
	}
	return w.WriteBool(n.RightIsLeaf)
}

// DecodeMsg implements msgp.Decodable
func (n *Node) DecodeMsg(r *msgp.Reader) error {
	sz, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	if sz != 6 {
		return fmt.Errorf("node has %d fields, expected 6", sz)
	}
	if n.FeatureIndex, err = r.ReadInt(); err != nil {
		return err
	}
	if n.Threshold, err = r.ReadFloat64(); err != nil {
		return err
	}
	if n.LeftChild, err = r.ReadInt(); err != nil {
		return err
	}
	if n.LeftIsLeaf, err = r.ReadBool(); err != nil {
		return err
	}
	if n.RightChild, err = r.ReadInt(); err != nil {
		return err
	}
	n.RightIsLeaf, err = r.ReadBool()
	return err
}

// EncodeMsg implements msgp.Encodable
func (t *DecisionTree) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(4); err != nil {
		return err
	}
	if err := w.WriteArrayHeader(uint32(len(t.Nodes))); err != nil {
		return err
	}
	for _, n := range t.Nodes {
		if err := n.EncodeMsg(w); err != nil {
			return err
		}
	}
	if err := frame.WriteFloats(w, t.Outputs); err != nil {
		return err
	}
	if err := w.WriteInt(t.FeatureSize); err != nil {
		return err
	}
	return w.WriteInt(t.Depth)
}

// DecodeMsg implements msgp.Decodable
func (t *DecisionTree) DecodeMsg(r *msgp.Reader) error {
	sz, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	if sz != 4 {
		return fmt.Errorf("tree has %d fields, expected 4", sz)
	}
	nn, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	t.Nodes = make([]Node, nn)
	for i := range t.Nodes {
		if err := t.Nodes[i].DecodeMsg(r); err != nil {
			return err
		}
	}
	if t.Outputs, err = frame.ReadFloats(r); err != nil {
		return err
	}
	if t.FeatureSize, err = r.ReadInt(); err != nil {
		return err
	}
	t.Depth, err = r.ReadInt()
	return err
}

// EncodeMsg implements msgp.Encodable
func (e *Ensemble) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(uint32(len(e.Trees))); err != nil {
		return err
	}
	for i := range e.Trees {
		if err := e.Trees[i].EncodeMsg(w); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsg implements msgp.Decodable
func (e *Ensemble) DecodeMsg(r *msgp.Reader) error {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	e.Trees = make([]DecisionTree, n)
	for i := range e.Trees {
		if err := e.Trees[i].DecodeMsg(r); err != nil {
			return err
		}
	}
	return nil
}
