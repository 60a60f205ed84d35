package main

import (
	"context"
	"os"
	"os/signal"
)

// ============================================================================
// SPEKTR-OLAP CLI — Cube evaluation and what-if writeback over CSV data
// ============================================================================

const version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
