package scene

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/danmuck/cadview/internal/geometry"
	"github.com/danmuck/cadview/internal/instances"
	"github.com/danmuck/cadview/internal/protocol"
	"github.com/danmuck/cadview/internal/protocol/buffer"
	"github.com/danmuck/cadview/internal/testutil/testlog"
)

type fixture struct {
	mem    *memory.CheckedAllocator
	dec    *buffer.Decoder
	table  *instances.Table
	report *instances.Report
}

func newFixture(t *testing.T, envelope string) (*fixture, *protocol.Node) {
	t.Helper()
	var env protocol.Envelope
	if err := json.Unmarshal([]byte(envelope), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	f := &fixture{mem: memory.NewCheckedAllocator(memory.NewGoAllocator()), report: &instances.Report{}}
	f.dec = buffer.NewDecoder(f.mem)
	f.table = instances.Decode(f.dec, env.Data.Instances, f.report)
	return f, env.Data.Shapes
}

func (f *fixture) walk(root *protocol.Node) (*Node, Stats) {
	w := NewWalker(f.dec, f.table, f.report)
	out := w.Walk(root)
	return out, w.Stats()
}

func (f *fixture) finish(t *testing.T, root *Node) {
	t.Helper()
	f.table.Clear()
	f.dec.Close()
	root.Release()
	f.mem.AssertSize(t, 0)
}

func TestWalkResolvesReferenceToTableBlock(t *testing.T) {
	testlog.Start(t)
	f, wire := newFixture(t, `{"data":{
		"instances":[{"vertices":{"buffer":"0000803f","codec":"hex","dtype":"float32"}}],
		"shapes":{"type":"shapes","shape":{"ref":0}}}}`)

	root, stats := f.walk(wire)
	want, err := f.table.Resolve(0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if root.Shape != want {
		t.Fatalf("expected root shape to be instance 0")
	}
	want.Release()
	if got := root.Shape.Channel(geometry.Vertices).Single().Float32s(); len(got) != 1 || got[0] != 1.0 {
		t.Fatalf("expected [1.0], got %v", got)
	}
	if root.Ref != 0 || stats.Refs != 1 {
		t.Fatalf("unexpected ref bookkeeping ref=%d stats=%+v", root.Ref, stats)
	}
	f.finish(t, root)
}

func TestWalkSharedReferenceSurvivesTableClear(t *testing.T) {
	testlog.Start(t)
	f, wire := newFixture(t, `{"data":{
		"instances":[{"normals":{"buffer":"AAAAAAAAAAAAAIA/","codec":"b64","dtype":"float32"}}],
		"shapes":{"type":"shapes","parts":[
			{"type":"shapes","name":"a","shape":{"ref":0}},
			{"type":"shapes","name":"b","shape":{"ref":0}}]}}}`)

	root, _ := f.walk(wire)
	a, b := root.Parts[0], root.Parts[1]
	if a.Shape == nil || a.Shape != b.Shape {
		t.Fatalf("expected both parts to share instance 0")
	}
	if a.Name != "a" || b.Path != "/parts/1" {
		t.Fatalf("unexpected node identity name=%q path=%q", a.Name, b.Path)
	}
	f.table.Clear()
	if f.table.Len() != 0 {
		t.Fatalf("expected empty table")
	}
	if got := a.Shape.Channel(geometry.Normals).Single().Float32s(); len(got) != 3 || got[2] != 1 {
		t.Fatalf("shared block lost after clear: %v", got)
	}
	if len(root.Blocks()) != 1 {
		t.Fatalf("expected one distinct block, got %d", len(root.Blocks()))
	}
	f.finish(t, root)
}

func TestWalkDecodesChannelsByKind(t *testing.T) {
	testlog.Start(t)
	all := `{"vertices":{"buffer":"0000803f","codec":"hex","dtype":"float32"},` +
		`"obj_vertices":{"buffer":"00000040","codec":"hex","dtype":"float32"},` +
		`"edges":{"buffer":"01000000","codec":"hex","dtype":"int32"},` +
		`"segments_per_edge":{"buffer":"02000000","codec":"hex","dtype":"uint32"}}`
	f, wire := newFixture(t, `{"data":{"instances":[],"shapes":{"type":"shapes","shape":`+all+`,"parts":[
		{"type":"edges","shape":`+all+`},
		{"type":"vertices","shape":`+all+`}]}}}`)

	root, _ := f.walk(wire)
	cases := []struct {
		node *Node
		want []geometry.ChannelID
	}{
		{root, []geometry.ChannelID{geometry.Vertices, geometry.ObjVertices, geometry.Edges, geometry.SegmentsPerEdge}},
		{root.Parts[0], []geometry.ChannelID{geometry.ObjVertices, geometry.Edges, geometry.SegmentsPerEdge}},
		{root.Parts[1], []geometry.ChannelID{geometry.ObjVertices}},
	}
	for _, tc := range cases {
		got := tc.node.Shape.Present()
		if len(got) != len(tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.node.Type, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: expected %v, got %v", tc.node.Type, tc.want, got)
			}
		}
	}
	if root.Parts[1].Kind != KindOther || root.Parts[1].Type != "vertices" {
		t.Fatalf("unexpected kind for unknown label: %v", root.Parts[1].Kind)
	}
	f.finish(t, root)
}

func TestWalkReferenceErrorsLeaveShapeNil(t *testing.T) {
	testlog.Start(t)
	f, wire := newFixture(t, `{"data":{"instances":[{}],"shapes":{"type":"shapes","parts":[
		{"type":"shapes","shape":{"ref":4}},
		{"type":"edges","shape":{"ref":0}},
		{"type":"shapes","shape":{"ref":"x"}},
		{"type":"shapes","shape":{"ref":0}}]}}}`)

	root, stats := f.walk(wire)
	for i := 0; i < 3; i++ {
		if root.Parts[i].Shape != nil {
			t.Fatalf("part %d: expected nil shape", i)
		}
	}
	if root.Parts[3].Shape == nil {
		t.Fatalf("valid sibling must still resolve")
	}
	if stats.RefErrors != 3 || f.report.Len() != 3 {
		t.Fatalf("expected 3 reference errors, got stats=%+v report=%v", stats, f.report.Errors)
	}
	causes := []error{protocol.ErrRefOutOfRange, protocol.ErrRefNotAllowed, protocol.ErrRefMalformed}
	for i, cause := range causes {
		var rerr *protocol.ReferenceError
		if !errors.As(f.report.Errors[i], &rerr) || !errors.Is(rerr, cause) {
			t.Fatalf("error %d: expected %v, got %v", i, cause, f.report.Errors[i])
		}
		if rerr.Path == "" || rerr.Path == "/" {
			t.Fatalf("error %d: expected node path, got %q", i, rerr.Path)
		}
	}
	f.finish(t, root)
}

func TestWalkFieldErrorKeepsSiblings(t *testing.T) {
	testlog.Start(t)
	f, wire := newFixture(t, `{"data":{"instances":[],"shapes":{"type":"shapes","shape":{
		"vertices":{"buffer":"0000803f","codec":"hex","dtype":"float64"},
		"normals":{"buffer":"0000803f","codec":"hex","dtype":"float32"}}}}}`)

	root, stats := f.walk(wire)
	if root.Shape.Has(geometry.Vertices) || !root.Shape.Has(geometry.Normals) {
		t.Fatalf("unexpected channels %v", root.Shape.Present())
	}
	if stats.FailedChan != 1 || !errors.Is(f.report.Errors[0], protocol.ErrUnknownDType) {
		t.Fatalf("expected one dtype failure, got %+v %v", stats, f.report.Errors)
	}
	f.finish(t, root)
}

func TestWalkDoesNotMutateWireTree(t *testing.T) {
	testlog.Start(t)
	f, wire := newFixture(t, `{"data":{"instances":[{}],"shapes":{"type":"shapes","color":"#fff","parts":[{"type":"shapes","shape":{"ref":0}}]}}}`)
	before, _ := json.Marshal(wire)
	root, _ := f.walk(wire)
	after, _ := json.Marshal(wire)
	if string(before) != string(after) {
		t.Fatalf("wire tree changed:\n%s\n%s", before, after)
	}
	if string(root.Attrs["color"]) != `"#fff"` || root.Count() != 2 {
		t.Fatalf("unexpected tree: attrs=%v count=%d", root.Attrs, root.Count())
	}
	f.finish(t, root)
}
