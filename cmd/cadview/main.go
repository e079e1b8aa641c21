package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `cadview decodes scene envelopes emitted by a geometry runtime.

Usage:
  cadview decode [--config f] [--emit] [--verbose] <envelope-file>
  cadview watch  [--config f] <envelope-file>
  cadview serve  [--config f] [--addr a]
  cadview config init [--kind toml|yaml] [--force] <path>
  cadview config validate <path>
`

// usageError exits with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "decode":
		err = runDecode(ctx, args[1:], stdout)
	case "watch":
		err = runWatch(ctx, args[1:], stdout)
	case "serve":
		err = runServe(ctx, args[1:])
	case "config":
		err = runConfig(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		err = usageError{msg: fmt.Sprintf("unknown command %q", args[0])}
	}
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "cadview: %v\n", err)
	if _, ok := err.(usageError); ok {
		fmt.Fprint(stderr, usage)
		return 2
	}
	return 1
}
