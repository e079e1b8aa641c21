package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/danmuck/cadview/internal/geometry"
	"github.com/danmuck/cadview/internal/protocol"
	"github.com/danmuck/cadview/internal/protocol/buffer"
	"github.com/danmuck/cadview/internal/scene"
)

const recordVersion = 1

// record is the CBOR payload. Blocks shared by several nodes are stored
// once and addressed by index so sharing survives a round trip.
type record struct {
	Version int           `cbor:"1,keyasint"`
	Created int64         `cbor:"2,keyasint"`
	Blocks  []blockRecord `cbor:"3,keyasint"`
	Root    *nodeRecord   `cbor:"4,keyasint,omitempty"`
}

type blockRecord struct {
	Channels []channelRecord `cbor:"1,keyasint"`
}

type channelRecord struct {
	ID     int           `cbor:"1,keyasint"`
	List   bool          `cbor:"2,keyasint,omitempty"`
	Arrays []arrayRecord `cbor:"3,keyasint"`
}

type arrayRecord struct {
	DType string `cbor:"1,keyasint"`
	Lanes []byte `cbor:"2,keyasint"`
}

type nodeRecord struct {
	Type  string            `cbor:"1,keyasint"`
	Path  string            `cbor:"2,keyasint,omitempty"`
	Attrs map[string][]byte `cbor:"3,keyasint,omitempty"`
	Ref   int               `cbor:"4,keyasint"`
	Block int               `cbor:"5,keyasint"`
	Parts []*nodeRecord     `cbor:"6,keyasint,omitempty"`
}

func fromScene(root *scene.Node, created int64) *record {
	rec := &record{Version: recordVersion, Created: created}
	index := make(map[*geometry.Block]int)
	var convert func(n *scene.Node) *nodeRecord
	convert = func(n *scene.Node) *nodeRecord {
		nr := &nodeRecord{Type: n.Type, Path: n.Path, Ref: n.Ref, Block: -1}
		if len(n.Attrs) > 0 {
			nr.Attrs = make(map[string][]byte, len(n.Attrs))
			for k, v := range n.Attrs {
				nr.Attrs[k] = []byte(v)
			}
		}
		if n.Shape != nil {
			i, ok := index[n.Shape]
			if !ok {
				i = len(rec.Blocks)
				index[n.Shape] = i
				rec.Blocks = append(rec.Blocks, blockFromGeometry(n.Shape))
			}
			nr.Block = i
		}
		for _, p := range n.Parts {
			nr.Parts = append(nr.Parts, convert(p))
		}
		return nr
	}
	if root != nil {
		rec.Root = convert(root)
	}
	return rec
}

func blockFromGeometry(b *geometry.Block) blockRecord {
	var br blockRecord
	for _, id := range b.Present() {
		ch := b.Channel(id)
		cr := channelRecord{ID: int(id), List: ch.List, Arrays: make([]arrayRecord, len(ch.Arrays))}
		for i, a := range ch.Arrays {
			cr.Arrays[i] = arrayRecord{DType: string(a.DType()), Lanes: buffer.Lanes(a)}
		}
		br.Channels = append(br.Channels, cr)
	}
	return br
}

// toScene rebuilds the tree on mem. Each node holds one reference to its
// block, as after a live walk.
func (r *record) toScene(mem memory.Allocator) (*scene.Node, error) {
	if r.Version != recordVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorrupt, r.Version)
	}
	if r.Root == nil {
		return nil, nil
	}
	blocks := make([]*geometry.Block, len(r.Blocks))
	release := func() {
		for _, b := range blocks {
			if b != nil {
				b.Release()
			}
		}
	}
	for i, br := range r.Blocks {
		b, err := br.toGeometry(mem)
		if err != nil {
			release()
			return nil, err
		}
		blocks[i] = b
	}

	var convert func(nr *nodeRecord) (*scene.Node, error)
	convert = func(nr *nodeRecord) (*scene.Node, error) {
		n := &scene.Node{Kind: scene.KindOf(nr.Type), Type: nr.Type, Path: nr.Path, Ref: nr.Ref}
		if len(nr.Attrs) > 0 {
			n.Attrs = make(map[string]json.RawMessage, len(nr.Attrs))
			for k, v := range nr.Attrs {
				n.Attrs[k] = json.RawMessage(v)
			}
			if raw, ok := n.Attrs["name"]; ok {
				_ = json.Unmarshal(raw, &n.Name)
			}
		}
		if nr.Block >= 0 {
			if nr.Block >= len(blocks) {
				return nil, fmt.Errorf("%w: node %s block %d of %d", ErrCorrupt, nr.Path, nr.Block, len(blocks))
			}
			n.Shape = blocks[nr.Block]
		}
		for _, p := range nr.Parts {
			child, err := convert(p)
			if err != nil {
				return nil, err
			}
			n.Parts = append(n.Parts, child)
		}
		return n, nil
	}
	root, err := convert(r.Root)
	if err != nil {
		release()
		return nil, err
	}
	// blocks start with one reference; hand one to every node using it.
	root.Retain()
	release()
	return root, nil
}

func (br blockRecord) toGeometry(mem memory.Allocator) (*geometry.Block, error) {
	b := geometry.NewBlock()
	for _, cr := range br.Channels {
		if cr.ID < 0 || cr.ID >= int(geometry.NumChannels) {
			b.Release()
			return nil, fmt.Errorf("%w: channel id %d", ErrCorrupt, cr.ID)
		}
		ch := &geometry.Channel{List: cr.List, Arrays: make([]*geometry.Array, 0, len(cr.Arrays))}
		for _, ar := range cr.Arrays {
			a, err := buffer.Reinterpret(mem, protocol.DType(ar.DType), ar.Lanes)
			if err != nil {
				for _, done := range ch.Arrays {
					done.Release()
				}
				b.Release()
				return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
			}
			ch.Arrays = append(ch.Arrays, a)
		}
		b.Set(geometry.ChannelID(cr.ID), ch)
	}
	return b, nil
}
