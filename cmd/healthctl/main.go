// Command healthctl warms and clears the view cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"

	"github.com/prompt-general/healthscore/internal/app"
	"github.com/prompt-general/healthscore/internal/config"
	"github.com/prompt-general/healthscore/internal/customersuccess"
	"github.com/prompt-general/healthscore/internal/metrics"
	"github.com/prompt-general/healthscore/internal/window"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "warm":
		err = runWarm(ctx, os.Args[2:])
	case "clear":
		err = runClear(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage:
  healthctl warm  [-config file] -from YYYY-MM -to YYYY-MM
  healthctl clear [-config file] [-scope all|health-scores|dashboard]
`)
}

func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger := config.NewLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runWarm(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("warm", flag.ExitOnError)
	configFile := fs.String("config", "", "Configuration file path")
	from := fs.String("from", "", "First month, YYYY-MM")
	to := fs.String("to", "", "Last month, YYYY-MM")
	fs.Parse(args)

	windows, err := monthWindows(*from, *to)
	if err != nil {
		return err
	}
	windows = append([]window.Window{window.All()}, windows...)

	cfg, logger, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progressbar.Default(int64(len(windows) * len(customersuccess.Views)))
	for _, w := range windows {
		if _, err := a.Service.HealthScoresJSON(ctx, w); err != nil {
			return fmt.Errorf("warm %s %s: %w", customersuccess.ViewHealthScores, w, err)
		}
		_ = bar.Add(1)
		if _, err := a.Service.DashboardJSON(ctx, w); err != nil {
			return fmt.Errorf("warm %s %s: %w", customersuccess.ViewDashboard, w, err)
		}
		_ = bar.Add(1)
	}
	logger.Info("cache warmed", slog.Int("windows", len(windows)))
	return nil
}

func runClear(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configFile := fs.String("config", "", "Configuration file path")
	scope := fs.String("scope", customersuccess.ScopeAll, "all or a view name")
	fs.Parse(args)

	cfg, logger, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	layer, closeCache := app.NewCache(cfg.Cache, cfg.Sources.Timeout, metrics.New(), logger)
	defer closeCache()

	var removed int
	switch *scope {
	case customersuccess.ScopeAll, "":
		removed, err = layer.ClearAll(ctx)
	case customersuccess.ViewHealthScores, customersuccess.ViewDashboard:
		removed, err = layer.ClearPrefix(ctx, *scope)
	default:
		return fmt.Errorf("%w: %s", customersuccess.ErrUnknownView, *scope)
	}
	if err != nil {
		return err
	}
	fmt.Printf("removed %d keys (scope %s)\n", removed, *scope)
	return nil
}
