package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audiofp/internal/api"
	"audiofp/internal/config"
	"audiofp/internal/logging"
	"audiofp/internal/observability"
	"audiofp/internal/service/fingerprint"
	"audiofp/internal/service/ledger"
	"audiofp/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("AUDIOFP_CONFIG"), "path to a JSON or YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.Log)
	slog.SetDefault(logger)
	logger.Info("starting audiofp", "config", cfg.String())

	store, err := ledger.New(cfg)
	if err != nil {
		logger.Error("open ledger", "driver", cfg.Ledger.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	metrics := observability.NewMetrics(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := ledger.NewSweeper(store, cfg.Ledger.StagedTTL, cfg.Ledger.Retention, metrics, logger)
	sweeper.Start(ctx, cfg.Ledger.SweepInterval)

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		MinWorkers:        cfg.Worker.MinWorkers,
		MaxWorkers:        cfg.Worker.MaxWorkers,
		QueueSize:         cfg.Worker.QueueSize,
		WorkerIdleTimeout: cfg.Worker.IdleTimeout,
	}, logger)
	metrics.WatchPool(dispatcher.Stats)

	service := fingerprint.NewService(cfg, dispatcher, store, metrics, logger)
	handlers := api.NewHandler(service, cfg.Server.PublicDir, cfg.Upload.MaxBytes, metrics, logger)

	if logging.ParseLevel(cfg.Log.Level) != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(handlers, cfg, observability.Handler(nil), logger)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "upload_dir", cfg.Upload.Dir, "fpcalc", cfg.Fpcalc.Path)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", "error", err)
	}
	dispatcher.Stop()
}
