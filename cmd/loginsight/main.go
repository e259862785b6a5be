package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"loginsight/internal/cli"
)

func main() {
	// Cancel on SIGINT/SIGTERM so --follow and long loads stop cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx)
	cancel()
	os.Exit(code)
}
