package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// ============================================================================
// ANNOSTAT CLI: error analysis over annotation exports
// ============================================================================

var version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
