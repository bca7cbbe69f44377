package serialization

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	"github.com/tinylib/msgp/msgp"
	yaml "gopkg.in/yaml.v2"
)

// Magic prefixes every binary artifact so that foreign or truncated files are rejected early.
const Magic = "NSB1"

// Encode writes the object to the path, using the format specified by the file
// extension: .yaml/.yml and .json use reflection, .bin requires obj to implement
// msgp.Encodable and is written as Magic followed by a snappy-framed msgpack stream.
// Parent directories are created, and an existing file is overwritten.
func Encode(path string, obj interface{}) (err error) {
	w, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return err
	}
	defer errors.Defer(&err, w.Close)

	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		buf, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = w.Write(buf)
		return err
	case strings.HasSuffix(path, ".json"):
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(obj)
	case strings.HasSuffix(path, ".bin"):
		e, ok := obj.(msgp.Encodable)
		if !ok {
			return fmt.Errorf("%T cannot be encoded to %s: not msgp.Encodable", obj, path)
		}
		return EncodeBinary(w, e)
	default:
		return fmt.Errorf("could not find encoder for %s", path)
	}
}

// EncodeBinary writes Magic and the snappy-compressed msgpack encoding of e.
func EncodeBinary(w io.Writer, e msgp.Encodable) error {
	if _, err := io.WriteString(w, Magic); err != nil {
		return err
	}
	sw := snappy.NewBufferedWriter(w)
	mw := msgp.NewWriter(sw)
	if err := e.EncodeMsg(mw); err != nil {
		return err
	}
	if err := mw.Flush(); err != nil {
		return err
	}
	return sw.Close()
}
