package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/danmuck/cadview/internal/render"
	"github.com/danmuck/cadview/internal/runtime"
	"github.com/danmuck/cadview/internal/watch"
)

func runWatch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file (toml or yaml)")
	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}
	if fs.NArg() != 1 {
		return usageError{msg: "watch: expected one envelope file"}
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	opts, err := cfg.AdapterOptions("watch", nil)
	if err != nil {
		return err
	}
	adapter := render.NewAdapter(render.LogRenderer{}, opts)
	defer adapter.Close()
	if _, err := adapter.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("cadview.watch restore failed")
	}

	dispatcher := runtime.NewDispatcher(adapter, cfg.Runtime.SceneKind)
	var outMu sync.Mutex
	dispatcher.Subscribe(func(res *render.Result, err error) {
		outMu.Lock()
		defer outMu.Unlock()
		if err != nil {
			fmt.Fprintln(stdout, styleWarn.Render("rejected")+" "+err.Error())
			return
		}
		printResult(stdout, fs.Arg(0), res)
	})

	src := watch.NewSource(fs.Arg(0))
	return src.Run(ctx, func(ctx context.Context, data []byte) {
		dispatcher.Dispatch(ctx, runtime.Message{Kind: dispatcher.SceneKind(), Data: string(data)})
	})
}
