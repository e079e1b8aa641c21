package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/danmuck/cadview/internal/config"
	"github.com/danmuck/cadview/internal/logging"
)

// loadConfig returns defaults when path is empty and applies the log level.
func loadConfig(path string) (config.Config, error) {
	logging.ConfigureRuntime()
	cfg := config.Default()
	if strings.TrimSpace(path) != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	}
	logging.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func runConfig(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return usageError{msg: "config: missing subcommand (init|validate)"}
	}
	switch args[0] {
	case "init":
		fs := pflag.NewFlagSet("config init", pflag.ContinueOnError)
		kind := fs.String("kind", "toml", "config format: toml|yaml")
		force := fs.Bool("force", false, "overwrite an existing file")
		if err := fs.Parse(args[1:]); err != nil {
			return usageError{msg: err.Error()}
		}
		if fs.NArg() != 1 {
			return usageError{msg: "config init: expected one path"}
		}
		path := fs.Arg(0)
		if err := config.WriteTemplate(path, *kind, *force); err != nil {
			return err
		}
		fmt.Fprintln(stdout, styleOK.Render("wrote")+" "+path)
		return nil
	case "validate":
		if len(args) != 2 {
			return usageError{msg: "config validate: expected one path"}
		}
		if _, err := config.Load(args[1]); err != nil {
			return err
		}
		fmt.Fprintln(stdout, styleOK.Render("valid")+" "+args[1])
		return nil
	default:
		return usageError{msg: fmt.Sprintf("config: unknown subcommand %q", args[0])}
	}
}
