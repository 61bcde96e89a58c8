package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/di"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(logger *zap.Logger, res di.Resources) error {
	defer logger.Sync()
	defer closeResources(logger, res)

	started := 0
	for _, f := range res.Filters {
		if err := f.Start(); err != nil {
			logger.Error("Failed to start filter", zap.Error(err))
			stopFilters(logger, res, started)
			return err
		}
		started++
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("Shutting down...", zap.String("signal", sig.String()))

	stopFilters(logger, res, started)

	logger.Info("Shutdown complete")
	return nil
}

func stopFilters(logger *zap.Logger, res di.Resources, n int) {
	for i := n - 1; i >= 0; i-- {
		if err := res.Filters[i].Stop(); err != nil {
			logger.Error("Failed to stop filter", zap.Error(err))
		}
	}
}

func closeResources(logger *zap.Logger, res di.Resources) {
	if closer, ok := res.Publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close event publisher", zap.Error(err))
		}
	}

	if res.Store != nil {
		if err := res.Store.Close(); err != nil {
			logger.Error("Failed to close verdict store", zap.Error(err))
		}
	}

	// Stop the cache if needed
	if stopper, ok := res.Cache.(interface{ Stop() }); ok {
		stopper.Stop()
	}
}
