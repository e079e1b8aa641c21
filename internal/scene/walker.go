package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/cadview/internal/geometry"
	"github.com/danmuck/cadview/internal/instances"
	"github.com/danmuck/cadview/internal/protocol"
	"github.com/danmuck/cadview/internal/protocol/buffer"
)

// Stats counts what one walk produced.
type Stats struct {
	Nodes      int
	Refs       int
	Inline     int
	RefErrors  int
	Channels   int
	FailedChan int
	Malformed  int
}

// Walker turns a parsed wire tree into a resolved scene tree. The instance
// table must be fully decoded before Walk is called.
type Walker struct {
	dec    *buffer.Decoder
	table  *instances.Table
	report *instances.Report
	stats  Stats
}

func NewWalker(dec *buffer.Decoder, table *instances.Table, report *instances.Report) *Walker {
	return &Walker{dec: dec, table: table, report: report}
}

func (w *Walker) Stats() Stats { return w.stats }

// Walk builds the resolved tree rooted at root. The wire tree is not
// modified. Field and reference errors are logged, reported, and leave the
// affected part absent.
func (w *Walker) Walk(root *protocol.Node) *Node {
	if root == nil {
		return nil
	}
	out := w.walk(root, "")
	log.Debug().
		Int("nodes", w.stats.Nodes).
		Int("refs", w.stats.Refs).
		Int("inline", w.stats.Inline).
		Int("ref_errors", w.stats.RefErrors).
		Msg("scene.Walker.Walk done")
	return out
}

func (w *Walker) walk(in *protocol.Node, path string) *Node {
	kind := KindOf(in.Type)
	n := &Node{
		Kind:  kind,
		Type:  in.Type,
		Name:  attrString(in.Attrs, "name"),
		Path:  pathOrRoot(path),
		Attrs: in.Attrs,
		Ref:   -1,
	}
	w.stats.Nodes++
	for _, err := range in.Problems {
		log.Warn().Err(err).Str("path", n.Path).Msg("scene.Walker.walk malformed node field")
		w.report.Add(fmt.Errorf("%s: %w", n.Path, err))
		w.stats.Malformed++
	}

	if !protocol.IsNull(in.Shape) {
		n.Shape, n.Ref = w.shape(kind, in.Shape, n.Path)
	}

	if len(in.Parts) > 0 {
		n.Parts = make([]*Node, len(in.Parts))
		for i := range in.Parts {
			n.Parts[i] = w.walk(&in.Parts[i], path+"/parts/"+strconv.Itoa(i))
		}
	}
	return n
}

func (w *Walker) shape(kind Kind, raw json.RawMessage, path string) (*geometry.Block, int) {
	index, isRef, err := protocol.ParseRef(raw)
	if isRef {
		if err == nil && kind != KindShapes {
			err = protocol.ErrRefNotAllowed
		}
		if err != nil {
			w.refError(&protocol.ReferenceError{Path: path, Index: index, Len: w.table.Len(), Err: err})
			return nil, -1
		}
		block, err := w.table.Resolve(index)
		if err != nil {
			var rerr *protocol.ReferenceError
			if errors.As(err, &rerr) {
				rerr.Path = path
			}
			w.refError(err)
			return nil, -1
		}
		w.stats.Refs++
		return block, index
	}

	wire, err := protocol.ParseBlock(raw)
	if err != nil {
		bde := &protocol.BufferDecodeError{Channel: "shape", Err: err}
		log.Warn().Err(bde).Str("path", path).Msg("scene.Walker.shape inline shape dropped")
		w.report.Add(fmt.Errorf("%s: %w", path, bde))
		w.stats.FailedChan++
		return nil, -1
	}
	var st instances.Stats
	block := instances.DecodeBlock(w.dec, wire, kind.Channels(), path, w.report, &st)
	w.stats.Inline++
	w.stats.Channels += st.Channels
	w.stats.FailedChan += st.Failed
	return block, -1
}

func (w *Walker) refError(err error) {
	log.Warn().Err(err).Msg("scene.Walker.shape reference dropped")
	w.report.Add(err)
	w.stats.RefErrors++
}

func attrString(attrs map[string]json.RawMessage, key string) string {
	raw, ok := attrs[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func pathOrRoot(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
