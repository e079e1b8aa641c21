package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/danmuck/cadview/internal/render"
	"github.com/danmuck/cadview/internal/runtime"
	"github.com/danmuck/cadview/internal/transport"
)

func runServe(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file (toml or yaml)")
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}
	if fs.NArg() != 0 {
		return usageError{msg: "serve: unexpected arguments"}
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if fs.Changed("addr") {
		cfg.Server.Addr = *addr
	}
	opts, err := cfg.AdapterOptions("server", nil)
	if err != nil {
		return err
	}
	adapter := render.NewAdapter(render.LogRenderer{}, opts)
	defer adapter.Close()
	if _, err := adapter.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("cadview.serve restore failed")
	}

	dispatcher := runtime.NewDispatcher(adapter, cfg.Runtime.SceneKind)
	srv := transport.NewServer(dispatcher, adapter, transport.Options{
		Addr:        cfg.Server.Addr,
		CorsOrigins: cfg.Server.CorsOrigins,
		MaxFrame:    int64(cfg.Envelope.MaxBytes),
	})
	return srv.ListenAndServe(ctx)
}
