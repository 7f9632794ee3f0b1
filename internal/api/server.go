package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wonny/eln-backtest/pkg/config"
	"github.com/wonny/eln-backtest/pkg/logger"
)

// Server represents the HTTP API server
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	config     *config.Config

	// every request context derives from baseCtx; canceling it aborts
	// backtest batches that outlive the shutdown grace period
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a new API server
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second, // batch backtests over long histories
			IdleTimeout:  60 * time.Second,
			BaseContext:  func(net.Listener) context.Context { return baseCtx },
		},
		logger:     log,
		config:     cfg,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

// Run listens on the configured port and serves until ctx is done, then
// shuts down within grace.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln, grace)
}

// Serve serves on ln until ctx is done. Requests still running after grace
// have their contexts canceled and their connections closed; the returned
// error then wraps context.DeadlineExceeded.
func (s *Server) Serve(ctx context.Context, ln net.Listener, grace time.Duration) error {
	s.logger.WithFields(map[string]interface{}{
		"addr": ln.Addr().String(),
		"env":  s.config.Env,
	}).Info("Starting API server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.cancelBase()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	err := s.Shutdown(shutdownCtx)
	<-errCh
	return err
}

// Shutdown stops accepting requests and waits for running ones until ctx
// ends. Whatever is still running then is aborted.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	defer s.cancelBase()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.cancelBase()
		_ = s.httpServer.Close()
		s.logger.WithError(err).Warn("Aborted requests still running after shutdown grace")
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
