package scene

import (
	"encoding/json"
	"math"

	"github.com/danmuck/cadview/internal/geometry"
	"github.com/danmuck/cadview/internal/protocol"
)

// Summary is a renderer-independent digest of a resolved tree.
type Summary struct {
	Nodes    int            `json:"nodes"`
	Shapes   int            `json:"shapes"`
	Edges    int            `json:"edges"`
	Other    int            `json:"other"`
	Blocks   int            `json:"blocks"`
	Refs     int            `json:"refs"`
	Missing  int            `json:"missing_shapes"`
	Channels map[string]int `json:"channels"`
}

// Summarize counts nodes by kind and decoded elements per channel. Shared
// blocks are counted once.
func Summarize(root *Node) Summary {
	s := Summary{Channels: make(map[string]int)}
	root.Walk(func(n *Node) bool {
		s.Nodes++
		switch n.Kind {
		case KindShapes:
			s.Shapes++
		case KindEdges:
			s.Edges++
		default:
			s.Other++
		}
		if n.Ref >= 0 {
			s.Refs++
		}
		if n.Shape == nil {
			s.Missing++
		}
		return true
	})
	for _, b := range root.Blocks() {
		s.Blocks++
		for _, id := range b.Present() {
			s.Channels[id.String()] += b.Channel(id).Len()
		}
	}
	return s
}

// MarshalJSON emits the resolved node with decoded channel values in place
// of encoded buffers. int32 and uint32 channels are both emitted as the
// unsigned lanes they decode to. Non-finite floats are emitted as null.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Attrs)+4)
	for k, v := range n.Attrs {
		out[k] = v
	}
	out["type"] = n.Type
	if n.Ref >= 0 {
		out["ref"] = n.Ref
	}
	if n.Shape != nil {
		shape := make(map[string]any)
		for _, id := range n.Shape.Present() {
			ch := n.Shape.Channel(id)
			if !ch.List {
				shape[id.String()] = arrayValues(ch.Single())
				continue
			}
			list := make([]any, len(ch.Arrays))
			for i, a := range ch.Arrays {
				list[i] = arrayValues(a)
			}
			shape[id.String()] = list
		}
		out["shape"] = shape
	}
	if len(n.Parts) > 0 {
		out["parts"] = n.Parts
	}
	return json.Marshal(out)
}

func arrayValues(a *geometry.Array) any {
	if a == nil {
		return nil
	}
	if a.DType() != protocol.DTypeFloat32 {
		return a.Uint32s()
	}
	lanes := a.Float32s()
	out := make([]*float32, len(lanes))
	for i, v := range lanes {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			continue
		}
		out[i] = &v
	}
	return out
}
