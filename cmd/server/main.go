package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	h "github.com/nkoval/videofetch/internal/api/http"
	"github.com/nkoval/videofetch/internal/cleanup"
	cfgpkg "github.com/nkoval/videofetch/internal/config"
	"github.com/nkoval/videofetch/internal/events"
	"github.com/nkoval/videofetch/internal/filestore"
	"github.com/nkoval/videofetch/internal/orchestrator"
	"github.com/nkoval/videofetch/internal/provider"
	"github.com/nkoval/videofetch/internal/registry"
	"github.com/nkoval/videofetch/internal/repository"
	"github.com/nkoval/videofetch/internal/retry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := cfgpkg.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfgpkg.SetupLogger(cfg)
	slog.Info("configuration loaded successfully")

	history, err := repository.NewFileHistoryStore(cfg.HistoryDir)
	if err != nil {
		slog.Error("failed to initialize history store", "error", err)
		os.Exit(1)
	}

	files, err := filestore.New(cfg.TempDir, cfg.DownloadDir, filestore.NopPostProcessor{}, slog.Default())
	if err != nil {
		slog.Error("failed to initialize file store", "error", err)
		os.Exit(1)
	}

	bus := events.NewChannelBus(64, slog.Default())
	retries := retry.New(cfg.MaxRetries, cfg.RetryInitial, cfg.RetryMaxDelay, slog.Default())
	fetcher := provider.NewHTTPFetcher(cfg.FetchTimeout, slog.Default())

	orch := orchestrator.New(
		orchestrator.Options{
			MaxConcurrent:    cfg.MaxConcurrent,
			QueueSize:        cfg.QueueSize,
			HistoryListLimit: cfg.HistoryListLimit,
		},
		registry.New(cfg.RegistryMaxEntries),
		retries,
		files,
		fetcher,
		history,
		bus,
		slog.Default(),
	)

	if err := orch.RecoverInterrupted(context.Background()); err != nil {
		slog.Error("failed to recover interrupted jobs", "error", err)
	}

	engine := cleanup.New(cfg.DownloadDir, cleanup.Policy{
		RetentionAge:    cfg.RetentionAge(),
		MaxStorageBytes: cfg.MaxStorageBytes,
		KeepRecentCount: cfg.KeepRecentCount,
		Interval:        cfg.CleanupInterval,
	}, slog.Default())
	if err := engine.Start(); err != nil {
		slog.Error("failed to start cleanup engine", "error", err)
		os.Exit(1)
	}

	router := h.NewRouter(orch, engine, slog.Default())
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  cfg.HTTPTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	engine.Stop()

	if err := orch.Shutdown(shutdownCtx); err != nil {
		slog.Error("orchestrator shutdown failed", "error", err)
	} else {
		slog.Info("service stopped gracefully")
	}
	bus.Close()
}
