// Package main provides the assistant API server entrypoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JuanR0/biblio/internal/config"
	"github.com/JuanR0/biblio/internal/factories"
	"github.com/JuanR0/biblio/internal/observability"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := factories.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Assistant API stopped with error")
		os.Exit(1)
	}
}

// run serves the API until SIGINT/SIGTERM or a listener failure.
func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("addr", cfg.Addr()).
		Str("knowledge_dir", cfg.Knowledge.Dir).
		Str("synonyms", cfg.Synonyms.Path).
		Bool("linguistic", cfg.Linguistic.Enabled).
		Str("cache", cfg.Cache.Driver).
		Bool("audit", cfg.Audit.Enabled).
		Msg("Starting library assistant API")

	app, err := factories.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to release resources")
		}
	}()

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: NewRouter(logger, app.Engine, app, RouterConfig{
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: cfg.Server.ReadTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	logger.Info().Msg("Server stopped")
	return nil
}
