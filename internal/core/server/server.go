// Package server wires the HTTP routes of the meeting finder proxy.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/bmlt-go/internal/core/config"
	"github.com/mohammed-shakir/bmlt-go/internal/core/health"
	"github.com/mohammed-shakir/bmlt-go/internal/core/middleware"
	"github.com/mohammed-shakir/bmlt-go/internal/core/router"
)

type Options struct {
	// Metrics is mounted at cfg.Metrics.Path when non-nil and no separate
	// metrics address is configured.
	Metrics http.Handler
	// Ready holds the readiness checks served on /readyz.
	Ready map[string]health.Check
}

// NewRouter builds the route table without starting a listener.
func NewRouter(cfg config.Config, logger *slog.Logger, h router.Handler, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(2*time.Second, opts.Ready))
	if opts.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		r.Method(http.MethodGet, cfg.Metrics.Path, opts.Metrics)
	}

	r.Get("/meetings", router.HandleMeetings(logger, h))
	r.Get("/formats", router.HandleFormats(logger, h))
	r.Get("/service-bodies", router.HandleServiceBodies(logger, h))
	r.Get("/server-info", router.HandleServerInfo(logger, h))
	return r
}

// Run serves until ctx ends, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, h router.Handler, opts Options) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(cfg, logger, h, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	servers := []*http.Server{srv}
	if opts.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, opts.Metrics)
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			logger.Info("http listen", "addr", s.Addr)
			if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(s)
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, s := range servers {
			_ = s.Shutdown(shutdownCtx)
		}
	}

	select {
	case <-ctx.Done():
		shutdown()
		return nil
	case err := <-errCh:
		shutdown()
		return err
	}
}
