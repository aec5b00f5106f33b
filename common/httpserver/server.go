// common/httpserver/server.go

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/YaganovValera/universe-client/common/logger"
	"github.com/YaganovValera/universe-client/common/middleware"
	"github.com/YaganovValera/universe-client/common/prometheus"
)

// ReadyChecker returns nil if the service is ready.
type ReadyChecker func() error

// HTTPServer serves until its context is cancelled.
type HTTPServer interface {
	Start(ctx context.Context) error
}

type server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	log             *logger.Logger
}

// New builds a server exposing metrics, liveness and readiness endpoints.
// mws wrap the whole mux, outermost first.
func New(cfg Config, check ReadyChecker, log *logger.Logger, mws ...Middleware) (HTTPServer, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if check == nil {
		check = func() error { return nil }
	}

	return &server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      middleware.Compose(mws...)(newMux(cfg, check)),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             log.Named("http-server"),
	}, nil
}

func newMux(cfg Config, check ReadyChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, prometheus.Handler())
	mux.HandleFunc(cfg.HealthzPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc(cfg.ReadyzPath, func(w http.ResponseWriter, _ *http.Request) {
		if err := check(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "NOT READY: %v", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})
	return mux
}

// Start runs ListenAndServe and shuts down gracefully on ctx.Done().
func (s *server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("http: starting server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("httpserver: listen: %w", err)
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		s.log.Info("http: shutdown signal received")
		serveErr = ctx.Err()
	case err := <-errCh:
		serveErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("http: graceful shutdown failed", zap.Error(err))
		return err
	}
	s.log.Info("http: server stopped gracefully")
	return serveErr
}
