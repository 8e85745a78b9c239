package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"groups-exporter/internal/observability"
)

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. The
// signal handler is released once the context is done.
func GracefulShutdown(parent context.Context, logger *observability.Logger) (context.Context, context.CancelFunc) {
	if logger == nil {
		logger = observability.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
