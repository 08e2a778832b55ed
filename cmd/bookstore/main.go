// Package main is the bookstore command: one subcommand per book query, plus an HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/abgdnv/bookstore/internal/book/app"
	"github.com/abgdnv/bookstore/internal/config"
	"github.com/abgdnv/bookstore/internal/platform/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var appLogger *slog.Logger
	load := func() (*environment, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("error loading configuration: %w", err)
		}

		// Reports go to stdout, so logs stay on stderr.
		var logLevel slog.Level
		logLevel, appLogger = logger.New(os.Stderr, cfg.Log.Level)
		appLogger.Debug("Configuration loaded", "config", cfg.String(), "actual_slog_level", logLevel.String())

		deps := app.SetupDependencies(cfg, os.Stdout, appLogger)
		return &environment{
			books: deps.BookService,
			serve: func(ctx context.Context) error {
				return serveHTTP(ctx, cfg, app.SetupDependencies(cfg, io.Discard, appLogger))
			},
		}, nil
	}

	if err := newApp(load).RunContext(ctx, os.Args); err != nil {
		if appLogger != nil {
			appLogger.Error("Command failed", "error", err)
		} else {
			log.Printf("Command failed: %v", err)
		}
		stop()
		os.Exit(1)
	}
}

// serveHTTP runs the HTTP server until ctx is cancelled, then shuts it down gracefully.
func serveHTTP(ctx context.Context, cfg *config.Config, deps *app.Dependencies) error {
	server := app.SetupHttpServer(deps, cfg)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		deps.Logger.Info("Starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		deps.Logger.Info("Server is shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTPServer.Timeout.Shutdown)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
