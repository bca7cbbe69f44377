package serialization

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"strings"

	"github.com/golang/snappy"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	"github.com/tinylib/msgp/msgp"
	yaml "gopkg.in/yaml.v2"
)

// Decode loads an object written by Encode. The format is determined by the file extension.
func Decode(path string, obj interface{}) error {
	r, err := fileutil.NewReader(path)
	if err != nil {
		return fmt.Errorf("error loading %s: %v", path, err)
	}
	defer r.Close()

	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		buf, err := ioutil.ReadAll(r)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(buf, obj)
	case strings.HasSuffix(path, ".json"):
		return json.NewDecoder(r).Decode(obj)
	case strings.HasSuffix(path, ".bin"):
		d, ok := obj.(msgp.Decodable)
		if !ok {
			return fmt.Errorf("%T cannot be decoded from %s: not msgp.Decodable", obj, path)
		}
		if err := DecodeBinary(r, d); err != nil {
			return fmt.Errorf("error decoding %s: %v", path, err)
		}
		return nil
	default:
		return fmt.Errorf("could not find decoder for %s", path)
	}
}

// DecodeBinary checks Magic and decodes a snappy-compressed msgpack stream into d.
func DecodeBinary(r io.Reader, d msgp.Decodable) error {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("reading header: %v", err)
	}
	if string(magic) != Magic {
		return fmt.Errorf("unexpected header %q", magic)
	}
	return d.DecodeMsg(msgp.NewReader(snappy.NewReader(r)))
}
