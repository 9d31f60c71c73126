// Package server wires the proxy routes and serves them.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/geoclient/internal/core/config"
	"github.com/mohammed-shakir/geoclient/internal/core/health"
	middleware "github.com/mohammed-shakir/geoclient/internal/core/middleware"
	"github.com/mohammed-shakir/geoclient/internal/core/router"
)

// Deps are the collaborators behind the proxy routes. Runner and Pingers
// feed the readiness probe and may be nil.
type Deps struct {
	Geo     router.Geo
	Runner  health.ReadinessReporter
	Pingers map[string]health.Pinger
}

func NewHandler(logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Runner, d.Pingers))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	router.Mount(r, logger, d.Geo)
	return r
}

// Run serves h on cfg.Addr until ctx is done, then shuts down within
// cfg.ShutdownTimeout.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
