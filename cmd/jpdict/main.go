// Command jpdict imports Japanese dictionaries and looks up words in text.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
