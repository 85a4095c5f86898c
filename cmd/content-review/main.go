package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/content-review/internal/core"
	"github.com/mikey/content-review/internal/di"
	"github.com/mikey/content-review/internal/ports"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", dig.RootCause(err))
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	frontends []ports.Frontend,
	cacheRepo core.CacheRepository,
) error {
	defer logger.Sync()

	started := make([]ports.Frontend, 0, len(frontends))
	for _, fe := range frontends {
		if err := fe.Start(); err != nil {
			logger.Error("Failed to start frontend", zap.String("frontend", fe.Name()), zap.Error(err))
			stopAll(logger, started)
			return err
		}
		started = append(started, fe)
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	stopAll(logger, started)

	// Stop the cache if needed
	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}

func stopAll(logger *zap.Logger, frontends []ports.Frontend) {
	for _, fe := range frontends {
		if err := fe.Stop(); err != nil {
			logger.Error("Failed to stop frontend", zap.String("frontend", fe.Name()), zap.Error(err))
		}
	}
}
