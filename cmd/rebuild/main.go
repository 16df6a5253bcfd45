package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ErlanBelekov/points-rebuild/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := cli.Execute(ctx, os.Args[1:], cli.EnvFrom(os.Environ()), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
