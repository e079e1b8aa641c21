package runtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/cadview/internal/observability"
	"github.com/danmuck/cadview/internal/render"
)

// Updater applies one raw scene message.
type Updater interface {
	Update(ctx context.Context, raw string) (*render.Result, error)
}

// Listener observes every dispatched update after it completes.
type Listener func(res *render.Result, err error)

// Dispatcher filters runtime output by kind and runs scene updates one at a
// time, whichever source they arrive from.
type Dispatcher struct {
	updater   Updater
	sceneKind string

	mu        sync.Mutex
	listeners []Listener
}

func NewDispatcher(u Updater, sceneKind string) *Dispatcher {
	if sceneKind == "" {
		sceneKind = DefaultSceneKind
	}
	return &Dispatcher{updater: u, sceneKind: sceneKind}
}

func (d *Dispatcher) SceneKind() string { return d.sceneKind }

// Subscribe registers fn. Listeners run on the dispatching goroutine while
// the update lock is held.
func (d *Dispatcher) Subscribe(fn Listener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// Dispatch hands scene messages to the updater and ignores everything
// else. An ignored message returns (nil, false, nil).
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) (*render.Result, bool, error) {
	if msg.Kind != d.sceneKind {
		observability.RecordRuntimeMessage(msg.Kind, false)
		log.Debug().Str("kind", msg.Kind).Int("bytes", len(msg.Data)).Msg("runtime.Dispatcher.Dispatch ignored")
		return nil, false, nil
	}
	observability.RecordRuntimeMessage(msg.Kind, true)

	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.updater.Update(ctx, msg.Data)
	for _, fn := range d.listeners {
		fn(res, err)
	}
	return res, true, err
}

// DispatchFrame parses a transport frame and dispatches it.
func (d *Dispatcher) DispatchFrame(ctx context.Context, frame []byte) (*render.Result, bool, error) {
	return d.Dispatch(ctx, ParseMessage(frame, d.sceneKind))
}
