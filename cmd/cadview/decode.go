package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/danmuck/cadview/internal/render"
)

func runDecode(ctx context.Context, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file (toml or yaml)")
	emit := fs.Bool("emit", false, "print the decoded tree as JSON")
	verbose := fs.Bool("verbose", false, "log every node")
	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}
	if fs.NArg() != 1 {
		return usageError{msg: "decode: expected one envelope file"}
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	opts, err := cfg.AdapterOptions("cli", nil)
	if err != nil {
		return err
	}
	adapter := render.NewAdapter(render.LogRenderer{Verbose: *verbose}, opts)
	defer adapter.Close()

	res, err := adapter.Update(ctx, string(raw))
	if err != nil {
		return err
	}
	if *emit {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Root)
	}
	printResult(stdout, fs.Arg(0), res)
	return nil
}
