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
	"syscall"

	"github.com/prompt-general/healthscore/internal/api"
	"github.com/prompt-general/healthscore/internal/app"
	"github.com/prompt-general/healthscore/internal/config"
	"github.com/prompt-general/healthscore/internal/telemetry"
)

var (
	commit = "unknown"
	date   = "unknown"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path (defaults to $CONFIG_PATH)")
		version    = flag.Bool("version", false, "Show version information")
		help       = flag.Bool("help", false, "Show help information")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	if *version {
		showVersion()
		return
	}

	if err := run(*configFile); err != nil {
		slog.Error("healthscore stopped", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)
	logger.Info("starting healthscore",
		slog.String("version", config.Version),
		slog.String("commit", commit),
		slog.String("built", date),
		slog.String("formula", cfg.Scoring.Formula))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTracing(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
		defer c()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", slog.String("err", err.Error()))
		}
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.Service.Monitor(ctx)

	m := a.Metrics
	if !cfg.Metrics.Enabled {
		m = nil
	}
	gateway := api.NewGateway(cfg.API, a.Service, a.Health, m, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := gateway.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping services")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()
	if err := gateway.Stop(shutdownCtx); err != nil {
		logger.Error("error during gateway shutdown", slog.String("err", err.Error()))
	}

	logger.Info("healthscore stopped")
	return nil
}

func showHelp() {
	fmt.Printf(`healthscore - Customer health score and KPI service

Usage:
  healthscore [flags]

Flags:
  -config string
        Configuration file path (defaults to $CONFIG_PATH)
  -version
        Show version information
  -help
        Show this help message

Environment:
  CUSTOMER_DB_DSN   PostgreSQL DSN of the CRM store
  ACTIVITY_DB_DSN   MySQL DSN or mysql:// URL of the operational store
  REDIS_ADDR        Redis address; selects the redis cache backend
  REDIS_PASSWORD    Redis password
  BASIC_AUTH_USERS  user:pass[,user:pass] for the /api/v1 routes
  LOG_LEVEL         debug, info, warn or error
`)
}

func showVersion() {
	fmt.Printf("healthscore version %s\n", config.Version)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("Built: %s\n", date)
}
