package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/superoverlay/internal/accessevents"
	"github.com/mohammed-shakir/superoverlay/internal/core/config"
	"github.com/mohammed-shakir/superoverlay/internal/core/health"
	"github.com/mohammed-shakir/superoverlay/internal/core/observability"
	"github.com/mohammed-shakir/superoverlay/internal/core/server"
	"github.com/mohammed-shakir/superoverlay/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/superoverlay/internal/logger"
	"github.com/mohammed-shakir/superoverlay/internal/mapsource"
	"github.com/mohammed-shakir/superoverlay/internal/mapsource/redisstore"
	"github.com/mohammed-shakir/superoverlay/internal/metrics"
	"github.com/mohammed-shakir/superoverlay/internal/overlay"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// flags override the matching env vars
	addr := flag.String("addr", "", "listen address (ADDR)")
	root := flag.String("root", "", "map source directory (MAP_SOURCE_ROOT)")
	format := flag.String("format", "", "output container, kml or kmz (OUTPUT_FORMAT)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *root != "" {
		cfg.MapSourceRoot = *root
	}
	if *format != "" {
		cfg.OutputFormat = strings.ToLower(strings.TrimSpace(*format))
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "superoverlay",
		Version:   Version,
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting superoverlay",
		"addr", cfg.Addr,
		"base", cfg.URLBase,
		"store", cfg.SourceStore,
		"format", cfg.OutputFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("descriptor store setup failed", "err", err)
		return 1
	}
	defer closeStore()

	cached, err := mapsource.NewCachedStore(store, cfg.SourceCacheSize)
	if err != nil {
		appLog.Error("descriptor cache setup failed", "err", err)
		return 1
	}

	prov := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, cfg.Metrics, prov.Handler(), appLog)
	}

	var events overlay.Publisher
	if cfg.AccessEvents.Enabled {
		pub, err := accessevents.NewPublisher(config.Brokers(cfg.AccessEvents.Brokers), cfg.AccessEvents.Topic, 0, appLog)
		if err != nil {
			appLog.Error("access events setup failed", "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("access events close", "err", err)
			}
		}()
		events = pub
	}

	ready := health.Options{
		Timeout: cfg.StoreOpTimeout,
		Checks:  map[string]health.Checker{"store": cached},
	}
	if cfg.Invalidation.Enabled {
		cons := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), cached, kafkaconsumer.Options{
			Logger:   appLog,
			Register: prov.Registerer(),
		})
		if err := cons.Start(ctx); err != nil {
			appLog.Error("invalidation consumer setup failed", "err", err)
			return 1
		}
		defer cons.Stop()
		ready.Consumer = cons
	}

	h, err := overlay.New(cfg, cached, overlay.Options{Logger: appLog, Events: events})
	if err != nil {
		appLog.Error("overlay handler setup failed", "err", err)
		return 1
	}

	err = server.Run(ctx, cfg, appLog, server.Deps{
		Overlay:     h,
		Placeholder: overlay.Placeholder(),
		Ready:       ready,
		Metrics:     prov.Handler(),
		Version:     Version,
	})
	if err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (mapsource.Store, func(), error) {
	switch cfg.SourceStore {
	case "fs", "":
		if _, err := os.Stat(cfg.MapSourceRoot); err != nil {
			return nil, nil, fmt.Errorf("map source root: %w", err)
		}
		return mapsource.NewFSStore(os.DirFS(cfg.MapSourceRoot), log), func() {}, nil
	case "redis":
		s, err := redisstore.New(ctx, cfg.RedisAddr, log, redisstore.WithReadTimeout(cfg.StoreOpTimeout))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown SOURCE_STORE %q (want fs or redis)", cfg.SourceStore)
}

func serveMetrics(ctx context.Context, mc config.MetricsCfg, h http.Handler, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(mc.Path, h)

	srv := &http.Server{
		Addr:              mc.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics: shutdown error", "err", err)
		}
	}()

	log.Info("metrics: listening", "addr", mc.Addr, "path", mc.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server exited", "err", err)
	}
}
