package shutdown

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/YaganovValera/universe-client/common/logger"
)

// GracefulShutdown runs fn with a bounded context and logs the outcome.
func GracefulShutdown(name string, timeout time.Duration, fn func(ctx context.Context) error, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info("shutdown: stopping " + name)
	if err := fn(ctx); err != nil {
		log.Error("shutdown: error in "+name, zap.Error(err))
	} else {
		log.Info("shutdown: " + name + " stopped cleanly")
	}
}

// Closer adapts a plain Close method to GracefulShutdown.
func Closer(close func() error) func(context.Context) error {
	return func(context.Context) error { return close() }
}
