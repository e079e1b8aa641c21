package config

import (
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/danmuck/cadview/internal/protocol/envelope"
	"github.com/danmuck/cadview/internal/render"
	"github.com/danmuck/cadview/internal/snapshot"
)

func (c Config) EnvelopeOptions() envelope.Options {
	return envelope.Options{
		Marker:   c.Envelope.Marker,
		Lenient:  c.Envelope.Lenient,
		MaxBytes: c.Envelope.MaxBytes,
	}
}

// SnapshotStore returns nil when no snapshot path is configured.
func (c Config) SnapshotStore() (*snapshot.Store, error) {
	if c.Snapshot.Path == "" {
		return nil, nil
	}
	comp, err := snapshot.ParseCompression(c.Snapshot.Compression)
	if err != nil {
		return nil, err
	}
	return snapshot.NewStore(c.Snapshot.Path, comp), nil
}

// AdapterOptions builds render adapter options; source labels metrics.
func (c Config) AdapterOptions(source string, mem memory.Allocator) (render.Options, error) {
	env := c.EnvelopeOptions()
	opts := render.Options{
		Envelope:  &env,
		Render:    render.MergeRender(render.DefaultRenderOptions(), render.RenderOptions(c.Render)),
		View:      render.MergeView(render.DefaultViewOptions(), render.ViewOptions(c.View)),
		Allocator: mem,
		Source:    source,
	}
	store, err := c.SnapshotStore()
	if err != nil {
		return render.Options{}, err
	}
	if store != nil {
		opts.Snapshots = store
	}
	return opts, nil
}
