package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/to-wer/media-renamer/internal/api"
	"github.com/to-wer/media-renamer/internal/httpauth"
	"github.com/to-wer/media-renamer/internal/metrics"
	"github.com/to-wer/media-renamer/internal/webdav"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watcher, REST API, metrics and WebDAV servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				return serve(cmd.Context(), a)
			})
		},
	}
}

func serve(parent context.Context, a *app) error {
	cfg := a.cfg

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediarenamer instance is already running")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release lock", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Watcher
	w := a.newWatcher()
	w.Start(ctx)

	// REST API
	httpauth.LogConfig(cfg.Server.Auth)
	apiServer := api.NewServer(a.proposals, api.WithScanner(w), api.WithAuth(cfg.Server.Auth))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Starting REST API server", "port", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("REST API server error", "error", err)
		}
	}()

	// Metrics
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 {
		a.registry.MustRegister(metrics.NewProposalCollector(a.repo))
		metricsServer = metrics.NewServer(cfg.Server.MetricsPort, a.registry)
		go func() {
			_ = metricsServer.Start()
		}()
	}

	// WebDAV
	var webdavHTTPServer *http.Server
	if cfg.Server.WebDAVPort > 0 {
		webdavServer := webdav.NewServer(libraryMounts(a)...)
		webdavHTTPServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.WebDAVPort),
			Handler:           httpauth.Wrap(webdavServer.Handler(), cfg.Server.Auth, "media-renamer WebDAV"),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("Starting WebDAV server", "port", cfg.Server.WebDAVPort)
			if err := webdavHTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("WebDAV server error", "error", err)
			}
		}()
	}

	slog.Info("mediarenamer is ready",
		"api_url", fmt.Sprintf("http://localhost:%d/api", cfg.Server.HTTPPort),
		"watch_path", cfg.Media.WatchPath,
	)

	<-ctx.Done()
	slog.Info("Shutting down")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("REST API server shutdown error", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}
	if webdavHTTPServer != nil {
		if err := webdavHTTPServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("WebDAV server shutdown error", "error", err)
		}
	}

	// Waits for an in-flight cycle to finish.
	w.Stop()

	slog.Info("mediarenamer stopped")
	return nil
}

// libraryMounts lists the distinct output roots for the WebDAV view.
func libraryMounts(a *app) []webdav.Mount {
	candidates := []webdav.Mount{
		{Name: "library", Dir: a.roots.Default},
		{Name: "movies", Dir: a.roots.Movie},
		{Name: "episodes", Dir: a.roots.Episode},
	}

	seen := make(map[string]bool)
	var mounts []webdav.Mount
	for _, m := range candidates {
		if m.Dir == "" || seen[m.Dir] {
			continue
		}
		seen[m.Dir] = true
		mounts = append(mounts, m)
	}
	return mounts
}
