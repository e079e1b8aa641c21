package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/cadview/internal/instances"
	"github.com/danmuck/cadview/internal/observability"
	"github.com/danmuck/cadview/internal/protocol"
	"github.com/danmuck/cadview/internal/protocol/buffer"
	"github.com/danmuck/cadview/internal/protocol/envelope"
	"github.com/danmuck/cadview/internal/scene"
)

var ErrRender = errors.New("render: renderer failed")

// Snapshotter persists the last rendered scene and loads it back.
type Snapshotter interface {
	Save(ctx context.Context, root *scene.Node) error
	Load(ctx context.Context, mem memory.Allocator) (*scene.Node, error)
}

// Options configures an Adapter. Zero values fall back to defaults.
type Options struct {
	// Envelope nil means envelope.DefaultOptions; a non-nil zero value
	// disables the marker, lenient mode and the size limit.
	Envelope  *envelope.Options
	Render    RenderOptions
	View      ViewOptions
	Allocator memory.Allocator
	Snapshots Snapshotter
	// Source labels update metrics.
	Source string
}

// Result describes one completed update. Root stays valid only while it
// is the adapter's current scene; Summary is safe to keep.
type Result struct {
	Root      *scene.Node
	Summary   scene.Summary
	Report    *instances.Report
	Instances instances.Stats
	Walk      scene.Stats
	CacheHits int
	Duration  time.Duration
}

// Adapter runs the parse, decode, walk, render cycle and owns the current
// scene. Update calls must not overlap; runtime.Dispatcher serializes them.
type Adapter struct {
	parser   *envelope.Parser
	renderer Renderer
	opts     Options

	mu      sync.Mutex
	current *scene.Node
}

func NewAdapter(r Renderer, opts Options) *Adapter {
	if r == nil {
		r = Discard
	}
	env := envelope.DefaultOptions()
	if opts.Envelope != nil {
		env = *opts.Envelope
	}
	if opts.Allocator == nil {
		opts.Allocator = memory.DefaultAllocator
	}
	if opts.Render == nil {
		opts.Render = DefaultRenderOptions()
	}
	if opts.View == nil {
		opts.View = DefaultViewOptions()
	}
	if opts.Source == "" {
		opts.Source = "direct"
	}
	return &Adapter{
		parser:   envelope.NewParser(env),
		renderer: r,
		opts:     opts,
	}
}

// Update applies one raw runtime message. An envelope error or a renderer
// error leaves the previous scene current. The instance table is cleared
// once the renderer returns, whatever it returned.
func (a *Adapter) Update(ctx context.Context, raw string) (*Result, error) {
	start := time.Now()
	env, err := a.parser.Parse(raw)
	if err != nil {
		observability.RecordSceneUpdate(a.opts.Source, observability.OutcomeParseError, time.Since(start))
		log.Warn().Err(err).Msg("render.Adapter.Update envelope rejected; previous scene kept")
		return nil, err
	}

	dec := buffer.NewDecoder(a.opts.Allocator)
	defer dec.Close()

	report := &instances.Report{}
	table := instances.Decode(dec, env.Data.Instances, report)
	walker := scene.NewWalker(dec, table, report)
	root := walker.Walk(env.Data.Shapes)

	err = a.renderer.Render(ctx, root, a.opts.Render, a.opts.View)
	table.Clear()

	res := &Result{
		Root:      root,
		Summary:   scene.Summarize(root),
		Report:    report,
		Instances: table.Stats(),
		Walk:      walker.Stats(),
		CacheHits: dec.Hits(),
		Duration:  time.Since(start),
	}
	recordReport(report)

	if err != nil {
		root.Release()
		res.Root = nil
		observability.RecordSceneUpdate(a.opts.Source, observability.OutcomeRenderError, res.Duration)
		log.Error().Err(err).Msg("render.Adapter.Update renderer failed; previous scene kept")
		return res, fmt.Errorf("%w: %w", ErrRender, err)
	}

	a.swap(root)
	observability.RecordSceneUpdate(a.opts.Source, observability.OutcomeOK, res.Duration)
	log.Debug().
		Int("field_errors", report.Len()).
		Int("cache_hits", res.CacheHits).
		Dur("took", res.Duration).
		Msg("render.Adapter.Update rendered")

	if a.opts.Snapshots != nil {
		if err := a.opts.Snapshots.Save(ctx, root); err != nil {
			log.Warn().Err(err).Msg("render.Adapter.Update snapshot save failed")
		}
	}
	return res, nil
}

// Restore renders the stored snapshot, if any, and makes it current.
func (a *Adapter) Restore(ctx context.Context) (*scene.Node, error) {
	if a.opts.Snapshots == nil {
		return nil, nil
	}
	root, err := a.opts.Snapshots.Load(ctx, a.opts.Allocator)
	if err != nil {
		return nil, fmt.Errorf("render: restore: %w", err)
	}
	if root == nil {
		return nil, nil
	}
	if err := a.renderer.Render(ctx, root, a.opts.Render, a.opts.View); err != nil {
		root.Release()
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	a.swap(root)
	log.Info().Int("nodes", root.Count()).Msg("render.Adapter.Restore snapshot rendered")
	return root, nil
}

// Current returns the current scene with one reference retained for the
// caller, who must Release it. It returns nil before the first render.
func (a *Adapter) Current() *scene.Node {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil
	}
	a.current.Retain()
	return a.current
}

// Close releases the current scene.
func (a *Adapter) Close() {
	a.swap(nil)
}

func (a *Adapter) swap(root *scene.Node) {
	a.mu.Lock()
	prev := a.current
	a.current = root
	a.mu.Unlock()
	if prev != nil {
		prev.Release()
	}
}

func recordReport(report *instances.Report) {
	var buf, ref int
	for _, err := range report.Errors {
		switch {
		case errors.Is(err, protocol.ErrReference):
			ref++
		case errors.Is(err, protocol.ErrBufferDecode):
			buf++
		}
	}
	observability.RecordFieldErrors(buf, ref)
}
