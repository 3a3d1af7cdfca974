package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/line-broadcast/internal/api"
	"github.com/ignite/line-broadcast/internal/app"
	"github.com/ignite/line-broadcast/internal/config"
	"github.com/ignite/line-broadcast/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	noDispatch := flag.Bool("no-dispatch", false, "serve the API without firing scheduled campaigns")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "component", "server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "component", "server", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var state api.DispatcherState
	dispatcher := a.Dispatcher()
	if !*noDispatch {
		if err := dispatcher.Start(); err != nil {
			logger.Error("dispatcher start failed", "component", "server", "error", err)
			os.Exit(1)
		}
		defer dispatcher.Stop()
		state = dispatcher

		recovery, err := a.RecoveryCron(ctx)
		if err != nil {
			logger.Error("invalid recovery schedule", "component", "server", "error", err)
			os.Exit(1)
		}
		recovery.Start()
		defer func() { <-recovery.Stop().Done() }()
	}

	handlers := api.NewHandlers(a.Campaigns, api.NewHealthChecker(a.DB, a.Redis, state))
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.SetupRoutes(handlers, api.RouteOptions{AllowedOrigins: cfg.Server.AllowedOrigins}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "component", "server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "component", "server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "component", "server", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped", "component", "server")
}
