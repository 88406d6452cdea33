// Package health serves the liveness probes, Prometheus metrics and the
// read/write API over stored lines and canonical entities.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Vodeneev/evledger/internal/pkg/health/handlers"
	"github.com/Vodeneev/evledger/internal/pkg/performance"
	"github.com/Vodeneev/evledger/internal/pkg/storage"
	"github.com/Vodeneev/evledger/internal/resolver"
)

// Options wires the server to the rest of the service. Cache, Runner and
// Tracker are optional; Gatherer defaults to prometheus.DefaultGatherer.
type Options struct {
	Service     string
	Store       storage.LineStore
	Cache       storage.SnapshotCache
	Registry    *resolver.Registry
	Runner      handlers.Runner
	Tracker     *performance.Tracker
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	h := handlers.NewHandler(opts.Store, opts.Cache, opts.Registry, opts.Runner, opts.Tracker)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/ping", h.Ping)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/lines", h.GetLines)
		r.Post("/lines", h.PostLines)
		r.Get("/entities", h.GetEntities)
		r.Get("/runs/last", h.GetLastRun)
		r.Post("/runs", h.TriggerRun)
	})
	return r
}

// Run serves handler on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr, service string, handler http.Handler, readHeaderTimeout time.Duration) error {
	if readHeaderTimeout <= 0 {
		return fmt.Errorf("read_header_timeout must be positive")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Health server listening", "service", service, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}
	slog.Info("Health server stopped", "service", service)
	return nil
}

func AddrFor(port int) (string, error) {
	if port <= 0 {
		return "", fmt.Errorf("port must be greater than 0")
	}
	return fmt.Sprintf(":%d", port), nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()))
	})
}
