// Package shutdown turns termination signals into context cancellation.
//
// The first SIGINT/SIGTERM cancels the command context; the running
// primitive's process group is then terminated by its runner and the
// pipeline rolls back. Further signals are absorbed so that rollback
// and cleanup run to completion.
//
// Usage:
//
//	h := shutdown.NewHandler(5 * time.Second)
//	ctx, stop := h.WithSignals(context.Background())
//	defer stop()
//	h.OnShutdown(func(ctx context.Context) error { return catalog.Close() })
//	defer h.Shutdown()
package shutdown
