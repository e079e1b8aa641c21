package scene

import (
	"encoding/json"

	"github.com/danmuck/cadview/internal/geometry"
)

// Kind selects which channels of a node's shape are decoded.
type Kind int

const (
	KindOther Kind = iota
	KindShapes
	KindEdges
)

func (k Kind) String() string {
	switch k {
	case KindShapes:
		return "shapes"
	case KindEdges:
		return "edges"
	default:
		return "other"
	}
}

// KindOf maps a wire type label to a Kind. Unknown labels are KindOther.
func KindOf(label string) Kind {
	switch label {
	case "shapes":
		return KindShapes
	case "edges":
		return KindEdges
	default:
		return KindOther
	}
}

// Channels lists what a node of this kind decodes from an inline shape.
func (k Kind) Channels() []geometry.ChannelID {
	switch k {
	case KindShapes:
		return geometry.AllChannels()
	case KindEdges:
		return []geometry.ChannelID{geometry.Edges, geometry.SegmentsPerEdge, geometry.ObjVertices}
	default:
		return []geometry.ChannelID{geometry.ObjVertices}
	}
}

// Node is one fully resolved scene node handed to the renderer.
type Node struct {
	Kind Kind
	// Type is the wire label as received, kept for renderers that know
	// more labels than the three kinds.
	Type  string
	Name  string
	Path  string
	Attrs map[string]json.RawMessage
	Parts []*Node
	// Shape is nil when the node had no shape or its reference failed.
	// A referenced shape is the instance table's block itself.
	Shape *geometry.Block
	// Ref is the instance index the shape was resolved from, or -1.
	Ref int
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, p := range n.Parts {
		p.Walk(fn)
	}
}

// Count returns the number of nodes in the subtree.
func (n *Node) Count() int {
	total := 0
	n.Walk(func(*Node) bool {
		total++
		return true
	})
	return total
}

// Blocks returns the distinct shape blocks of the subtree in first-seen
// order.
func (n *Node) Blocks() []*geometry.Block {
	seen := make(map[*geometry.Block]struct{})
	var out []*geometry.Block
	n.Walk(func(node *Node) bool {
		if node.Shape == nil {
			return true
		}
		if _, ok := seen[node.Shape]; !ok {
			seen[node.Shape] = struct{}{}
			out = append(out, node.Shape)
		}
		return true
	})
	return out
}

// Retain adds one holder to every shape of the subtree.
func (n *Node) Retain() {
	n.Walk(func(node *Node) bool {
		if node.Shape != nil {
			node.Shape.Retain()
		}
		return true
	})
}

// Release drops the subtree's references to its shapes.
func (n *Node) Release() {
	n.Walk(func(node *Node) bool {
		if node.Shape != nil {
			node.Shape.Release()
		}
		return true
	})
}
