package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultSettle is how long a file must stay quiet before it is read.
const DefaultSettle = 50 * time.Millisecond

// Handler receives the full contents of the watched file.
type Handler func(ctx context.Context, data []byte)

// Source feeds every rewrite of one file to a handler. The parent
// directory is watched so editors that replace the file by rename are
// seen too.
type Source struct {
	path   string
	settle time.Duration
	// Initial also delivers the file as it exists when Run starts.
	Initial bool
}

func NewSource(path string) *Source {
	return &Source{path: filepath.Clean(path), settle: DefaultSettle, Initial: true}
}

// SetSettle changes the quiet period; zero delivers on every event.
func (s *Source) SetSettle(d time.Duration) { s.settle = d }

// Run blocks until ctx is done or the watcher fails.
func (s *Source) Run(ctx context.Context, h Handler) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: new watcher: %w", err)
	}
	defer w.Close()
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	log.Info().Str("path", s.path).Msg("watch.Source.Run watching")

	if s.Initial {
		s.deliver(ctx, h)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if s.settle <= 0 {
				s.deliver(ctx, h)
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.settle)
			} else {
				timer.Reset(s.settle)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			s.deliver(ctx, h)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("path", s.path).Msg("watch.Source.Run watcher error")
		}
	}
}

func (s *Source) deliver(ctx context.Context, h Handler) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("watch.Source.deliver read failed")
		return
	}
	if len(data) == 0 {
		return
	}
	h(ctx, data)
}
