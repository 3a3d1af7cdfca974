package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/line-broadcast/internal/app"
	"github.com/ignite/line-broadcast/internal/config"
	"github.com/ignite/line-broadcast/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "component", "worker", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "component", "worker", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	dispatcher := a.Dispatcher()
	c, err := a.RecoveryCron(ctx)
	if err != nil {
		logger.Error("invalid recovery schedule", "component", "worker", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := dispatcher.Start(); err != nil {
			return err
		}
		c.Start()
		logger.Info("worker started", "component", "worker",
			"queue", cfg.Scheduler.Queue,
			"poll", cfg.Scheduler.PollInterval(),
			"recovery", cfg.Scheduler.RecoverySpec)

		<-gctx.Done()
		logger.Info("shutting down", "component", "worker")
		<-c.Stop().Done()
		dispatcher.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", "component", "worker", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped", "component", "worker")
}
