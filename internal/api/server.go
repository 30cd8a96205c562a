// Package api provides HTTP API server implementation for the core service.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/integration-os/core/internal/api/middleware"
	"github.com/integration-os/core/internal/emit"
	"github.com/integration-os/core/internal/ingress"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	config      *ServerConfig
	startTime   time.Time
	rateLimiter middleware.RateLimiter
	ingress     *ingress.Handler
	stream      *emit.Stream
}

// NewServer creates a new HTTP server instance with structured logging and middleware stack.
//
// Dependencies are injected explicitly rather than being folded into ServerConfig:
// configuration (what) stays separate from collaborators (how).
//
// ingressHandler and stream are required; NewServer panics if either is nil,
// since a server with no event path or emit path is a configuration error,
// not a degraded-but-running state.
func NewServer(
	cfg *ServerConfig,
	rateLimiter middleware.RateLimiter,
	ingressHandler *ingress.Handler,
	stream *emit.Stream,
) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if ingressHandler == nil || stream == nil {
		panic("api: ingress handler and emit stream cannot be nil")
	}

	mux := http.NewServeMux()

	server := &Server{
		logger:      logger,
		config:      cfg,
		rateLimiter: rateLimiter,
		ingress:     ingressHandler,
		stream:      stream,
	}

	server.setupRoutes(mux)

	if rateLimiter != nil {
		logger.Info("rate limiting middleware enabled")
	} else {
		logger.Warn("rate limiter not configured - rate limiting middleware disabled")
	}

	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - stamp a correlation ID on every response
	//   2. Recovery - catch panics in all downstream middleware
	//   3. RateLimit - reject before expensive work (optional)
	//   4. RequestLogger - log only admitted requests
	//   5. CORS - header manipulation
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRateLimit(rateLimiter),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting api server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server and its dependencies.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("initiating server shutdown", slog.Duration("shutdown_timeout", s.config.ShutdownTimeout))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.closeDependency("emit stream", s.stream)

	s.logger.Info("server shutdown completed successfully")

	return nil
}

// closeDependency attempts to close a server dependency that implements io.Closer.
// Errors are logged but don't stop shutdown (best-effort).
func (s *Server) closeDependency(name string, dep interface{}) {
	if dep == nil {
		return
	}

	closer, ok := dep.(io.Closer)
	if !ok {
		return
	}

	s.logger.Info("closing " + name)

	if err := closer.Close(); err != nil {
		s.logger.Error("failed to close "+name, slog.String("error", err.Error()))

		return
	}

	s.logger.Info(name + " closed successfully")
}
