package geometry

import (
	"sync/atomic"
)

// ChannelID indexes the nine numeric channels of a geometry block.
type ChannelID int

const (
	Vertices ChannelID = iota
	ObjVertices
	Normals
	EdgeTypes
	FaceTypes
	Triangles
	TrianglesPerFace
	Edges
	SegmentsPerEdge

	NumChannels
)

var channelNames = [NumChannels]string{
	Vertices:         "vertices",
	ObjVertices:      "obj_vertices",
	Normals:          "normals",
	EdgeTypes:        "edge_types",
	FaceTypes:        "face_types",
	Triangles:        "triangles",
	TrianglesPerFace: "triangles_per_face",
	Edges:            "edges",
	SegmentsPerEdge:  "segments_per_edge",
}

// String returns the wire key of the channel.
func (id ChannelID) String() string {
	if id < 0 || id >= NumChannels {
		return "unknown"
	}
	return channelNames[id]
}

// AllChannels lists every channel in wire order.
func AllChannels() []ChannelID {
	out := make([]ChannelID, NumChannels)
	for i := range out {
		out[i] = ChannelID(i)
	}
	return out
}

// ChannelByName maps a wire key back to its ChannelID.
func ChannelByName(name string) (ChannelID, bool) {
	for i, n := range channelNames {
		if n == name {
			return ChannelID(i), true
		}
	}
	return 0, false
}

// Channel is one decoded channel: a single array, or an ordered list
// decoded element-wise.
type Channel struct {
	Arrays []*Array
	List   bool
}

// Single returns the array of a non-list channel.
func (c *Channel) Single() *Array {
	if c == nil || c.List || len(c.Arrays) != 1 {
		return nil
	}
	return c.Arrays[0]
}

// Len is the total element count across all arrays.
func (c *Channel) Len() int {
	n := 0
	for _, a := range c.Arrays {
		n += a.Len()
	}
	return n
}

func (c *Channel) release() {
	for _, a := range c.Arrays {
		a.Release()
	}
}

// Block is a decoded geometry block. A block is immutable once decoding
// finishes and may be shared by several scene nodes; every holder owns one
// reference and the channel memory is freed when the last one releases.
type Block struct {
	channels [NumChannels]*Channel
	refs     atomic.Int64
}

// NewBlock returns an empty block holding one reference for the caller.
func NewBlock() *Block {
	b := &Block{}
	b.refs.Store(1)
	return b
}

// Set stores ch under id, taking over the caller's references to its arrays.
func (b *Block) Set(id ChannelID, ch *Channel) {
	if old := b.channels[id]; old != nil {
		old.release()
	}
	b.channels[id] = ch
}

// Channel returns the decoded channel or nil when absent.
func (b *Block) Channel(id ChannelID) *Channel {
	if b == nil || id < 0 || id >= NumChannels {
		return nil
	}
	return b.channels[id]
}

func (b *Block) Has(id ChannelID) bool { return b.Channel(id) != nil }

// Present lists the channels that decoded successfully.
func (b *Block) Present() []ChannelID {
	out := make([]ChannelID, 0, NumChannels)
	for i, ch := range b.channels {
		if ch != nil {
			out = append(out, ChannelID(i))
		}
	}
	return out
}

// Retain adds one holder.
func (b *Block) Retain() { b.refs.Add(1) }

// Release drops one holder and frees channel memory at zero.
func (b *Block) Release() {
	n := b.refs.Add(-1)
	if n == 0 {
		for i, ch := range b.channels {
			if ch != nil {
				ch.release()
				b.channels[i] = nil
			}
		}
	}
	if n < 0 {
		panic("geometry: Block released more times than retained")
	}
}

// RefCount reports the current number of holders.
func (b *Block) RefCount() int64 { return b.refs.Load() }
