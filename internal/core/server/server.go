package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/superoverlay/internal/core/config"
	"github.com/mohammed-shakir/superoverlay/internal/core/health"
	middleware "github.com/mohammed-shakir/superoverlay/internal/core/middleware"
	"github.com/mohammed-shakir/superoverlay/internal/core/router"
)

// Deps are the handlers the HTTP surface is assembled from.
type Deps struct {
	Overlay     router.OverlayHandler
	Placeholder http.Handler
	Ready       health.Options
	// Metrics defaults to the default Prometheus registry.
	Metrics http.Handler
	// Version is reported by /healthz.
	Version string
}

// Routes builds the router: health and metrics at the root, the overlay
// tree under cfg.URLBase.
func Routes(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness(d.Version))
	r.Get("/readyz", health.Readiness(d.Ready))
	metrics := d.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Get("/metrics", metrics.ServeHTTP)

	base := cfg.URLBase
	if base == "" {
		base = "/"
	}
	if base != "/" {
		r.Get(strings.TrimSuffix(base, "/"), func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, base, http.StatusMovedPermanently)
		})
	}
	if d.Placeholder != nil {
		r.Get(base+"zoom.png", d.Placeholder.ServeHTTP)
	}
	r.Get(base+"*", router.HandleOverlay(logger, d.Overlay))
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Routes(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr, "base", cfg.URLBase)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
