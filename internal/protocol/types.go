package protocol

import (
	"encoding/json"
	"fmt"
)

// Codec is the text encoding used to embed a binary array.
type Codec string

const (
	CodecHex    Codec = "hex"
	CodecBase64 Codec = "b64"
)

// DType controls how decoded bytes are reinterpreted as numbers.
type DType string

const (
	DTypeFloat32 DType = "float32"
	DTypeInt32   DType = "int32"
	DTypeUint32  DType = "uint32"
)

// LaneSize is the byte width of every supported dtype.
const LaneSize = 4

// Valid reports whether d is one of the supported dtypes.
func (d DType) Valid() bool {
	switch d {
	case DTypeFloat32, DTypeInt32, DTypeUint32:
		return true
	default:
		return false
	}
}

// EncodedBuffer is a flat numeric array in encoded form.
type EncodedBuffer struct {
	Buffer string `json:"buffer"`
	Codec  Codec  `json:"codec"`
	DType  DType  `json:"dtype"`
}

// Block is one wire geometry block keyed by channel name. Channel values
// stay raw until the buffer codec interprets them, so a malformed channel
// never fails the envelope.
type Block map[string]json.RawMessage

// Node is one wire scene node. Shape is kept raw because its meaning
// depends on Type. Problems holds malformed fields found while decoding
// this node; they never fail the envelope.
type Node struct {
	Type     string
	Parts    []Node
	Shape    json.RawMessage
	Attrs    map[string]json.RawMessage
	Problems []error
}

// UnmarshalJSON fails only when b is not an object. A non-string type
// decodes as "" and a part that is not an object is dropped; both are
// recorded in Problems.
func (n *Node) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("%w: null node", ErrMalformedNode)
	}
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &n.Type); err != nil {
			n.Type = ""
			n.problem(fmt.Errorf("%w: type %s", ErrMalformedNode, raw))
		}
		delete(fields, "type")
	}
	if raw, ok := fields["parts"]; ok {
		if !IsNull(raw) {
			n.decodeParts(raw)
		}
		delete(fields, "parts")
	}
	if raw, ok := fields["shape"]; ok {
		if !IsNull(raw) {
			n.Shape = raw
		}
		delete(fields, "shape")
	}
	if len(fields) > 0 {
		n.Attrs = fields
	}
	return nil
}

func (n *Node) decodeParts(raw json.RawMessage) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		n.problem(fmt.Errorf("%w: parts is not a list", ErrMalformedNode))
		return
	}
	n.Parts = make([]Node, 0, len(elems))
	for i, elem := range elems {
		var part Node
		if err := json.Unmarshal(elem, &part); err != nil {
			n.problem(fmt.Errorf("%w: parts[%d] dropped: %v", ErrMalformedNode, i, err))
			continue
		}
		n.Parts = append(n.Parts, part)
	}
}

func (n *Node) problem(err error) {
	n.Problems = append(n.Problems, err)
}

func (n Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Attrs)+3)
	for k, v := range n.Attrs {
		out[k] = v
	}
	if n.Type != "" {
		out["type"] = n.Type
	}
	if n.Parts != nil {
		out["parts"] = n.Parts
	}
	if len(n.Shape) > 0 {
		out["shape"] = n.Shape
	}
	return json.Marshal(out)
}

// Data is the payload of one scene update.
type Data struct {
	Instances []Block `json:"instances"`
	Shapes    *Node   `json:"shapes"`
}

// Envelope is the parsed top-level wire message.
type Envelope struct {
	Data *Data `json:"data"`
}

// IsNull reports whether raw is absent or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
