package render

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/cadview/internal/scene"
)

// Renderer draws a resolved scene. Render must not keep references to the
// tree's shapes past the call unless it retains them.
type Renderer interface {
	Render(ctx context.Context, root *scene.Node, ro RenderOptions, vo ViewOptions) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, root *scene.Node, ro RenderOptions, vo ViewOptions) error

func (f RendererFunc) Render(ctx context.Context, root *scene.Node, ro RenderOptions, vo ViewOptions) error {
	return f(ctx, root, ro, vo)
}

// Discard accepts every scene and draws nothing.
var Discard Renderer = RendererFunc(func(context.Context, *scene.Node, RenderOptions, ViewOptions) error {
	return nil
})

// Recorder keeps what it was last handed. Err, when set, is returned from
// Render after recording.
type Recorder struct {
	mu     sync.Mutex
	Err    error
	calls  int
	root   *scene.Node
	render RenderOptions
	view   ViewOptions
}

func (r *Recorder) Render(_ context.Context, root *scene.Node, ro RenderOptions, vo ViewOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.root, r.render, r.view = root, ro, vo
	return r.Err
}

func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Last returns the most recent tree and options. The tree is owned by the
// adapter and valid while it stays current.
func (r *Recorder) Last() (*scene.Node, RenderOptions, ViewOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root, r.render, r.view
}

// LogRenderer logs a summary of every scene it is handed.
type LogRenderer struct {
	// Verbose additionally logs one debug line per node.
	Verbose bool
}

func (l LogRenderer) Render(_ context.Context, root *scene.Node, _ RenderOptions, vo ViewOptions) error {
	s := scene.Summarize(root)
	log.Info().
		Int("nodes", s.Nodes).
		Int("blocks", s.Blocks).
		Int("refs", s.Refs).
		Int("missing", s.Missing).
		Interface("channels", s.Channels).
		Interface("up", vo["up"]).
		Msg("render.LogRenderer.Render scene")
	if l.Verbose {
		root.Walk(func(n *scene.Node) bool {
			ev := log.Debug().Str("path", n.Path).Str("type", n.Type).Str("name", n.Name)
			if n.Shape != nil {
				present := n.Shape.Present()
				names := make([]string, len(present))
				for i, id := range present {
					names[i] = id.String()
				}
				ev = ev.Strs("channels", names)
			}
			ev.Msg("render.LogRenderer.Render node")
			return true
		})
	}
	return nil
}
