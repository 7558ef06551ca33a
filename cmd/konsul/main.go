// Konsul server — HTTP API for consultation sessions, anketa polling,
// document uploads and exports.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/konsulhq/konsul/pkg/api"
	"github.com/konsulhq/konsul/pkg/config"
	"github.com/konsulhq/konsul/pkg/extraction"
	"github.com/konsulhq/konsul/pkg/llm"
	"github.com/konsulhq/konsul/pkg/notify"
	"github.com/konsulhq/konsul/pkg/rooms"
	"github.com/konsulhq/konsul/pkg/runtimecache"
	"github.com/konsulhq/konsul/pkg/store"
	"github.com/konsulhq/konsul/pkg/version"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, warnings := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("Starting konsul server", "version", version.Full(), "addr", cfg.Server.Addr())
	for _, w := range warnings {
		slog.Warn(w)
	}

	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		slog.Error("Failed to open session store", "path", cfg.Storage.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runtime := runtimecache.New()
	runtime.Start(ctx)
	defer runtime.Stop()

	var extractor api.Extractor
	var chat llm.ChatClient
	if cfg.OpenAI.APIKey != "" {
		client, err := llm.New()
		if err != nil {
			slog.Error("Failed to initialize LLM client", "error", err)
			os.Exit(1)
		}
		chat = client
		extractor = extraction.New(client)
	}

	srv := api.NewServer(api.Config{
		Store:   st,
		Runtime: runtime,
		Rooms:   rooms.New(cfg.LiveKit.HostURL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret),
		Notifier: notify.NewService(notify.ServiceConfig{
			WebhookURL:   cfg.Webhook.URL,
			AuthToken:    cfg.Webhook.AuthToken,
			DashboardURL: cfg.Server.DashboardURL,
		}),
		Extractor:  extractor,
		Chat:       chat,
		UploadsDir: cfg.Storage.UploadsDir,
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Addr())
		if err := srv.Start(cfg.Server.Addr()); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}

	slog.Info("Konsul server stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
