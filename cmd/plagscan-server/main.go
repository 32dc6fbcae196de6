// Package main provides the HTTP server for plagscan.
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
	"time"

	"github.com/raphaelgruber/plagscan/internal/config"
	"github.com/raphaelgruber/plagscan/internal/server"
	"github.com/raphaelgruber/plagscan/internal/service"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLogger := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := closeLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}()
	slog.SetDefault(logger)

	svc, err := service.NewFromConfig(cfg, logger)
	if err != nil {
		logger.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	// Warn early when the scorer backend is down; /health keeps reporting it.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if status := svc.Health(ctx); !status.Healthy() {
		logger.Warn("scorer not ready", "scorer", status.Scorer, "message", status.Message)
	}
	cancel()

	srv := server.New(svc, logger, server.Options{
		Version:        Version,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  60 * time.Second, // archive uploads
		WriteTimeout: 10 * time.Minute, // pairwise scoring of large batches
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting plagscan-server",
			"url", fmt.Sprintf("http://localhost:%s/", cfg.Port),
			"scorer", svc.Scorer().Name(),
			"version", Version)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
