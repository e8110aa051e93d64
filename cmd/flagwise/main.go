package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/flagwise/adapter/cli"
	cliFlag "github.com/felixgeelhaar/flagwise/adapter/cli/flag"
	"github.com/felixgeelhaar/flagwise/internal/app"
	"github.com/felixgeelhaar/flagwise/pkg/config"
	"github.com/felixgeelhaar/flagwise/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := observability.DefaultLogConfig()
	if cfg.IsProduction() {
		logCfg = observability.ProductionLogConfig()
	}
	logCfg.Level = observability.ParseLogLevel(cfg.LogLevel)
	logCfg.Format = observability.LogFormat(cfg.LogFormat)
	logCfg.ServiceVersion = cli.Version
	logCfg.InstanceID = cfg.InstanceID
	logger := observability.NewLogger(logCfg)
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}

	cli.SetApp(&cli.App{
		Evaluator:     container.Evaluator,
		Administrator: container.Administrator,
		Health:        container.Health,
		Metrics:       container.Metrics,
		HTTPAddr:      cfg.HTTPAddr,
		RunPeerSync:   container.RunPeerSync,
		Migrate:       container.Migrate,
	})
	cli.AddCommand(cliFlag.Cmd)

	err = cli.Run(ctx)
	container.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
