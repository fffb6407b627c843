package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acme/sales-dialer/internal/api"
	"github.com/acme/sales-dialer/internal/api/handlers"
	"github.com/acme/sales-dialer/internal/app"
	"github.com/acme/sales-dialer/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close()

	shutdown, err := telemetry.Setup(ctx, container.Config.Telemetry, container.Config.App.Name)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := container.EnsureTopics(ctx); err != nil {
		log.Fatalf("failed to ensure kafka topics: %v", err)
	}

	deps := handlers.Deps{
		Dialer:    container.Session(),
		FollowUps: container.FollowUps(),
		Statuses:  container.Repositories().Statuses,
		Checks:    container.HealthChecks(),
		Logger:    container.Logger,
	}
	if container.Config.Telemetry.MetricsEnabled {
		deps.Metrics = container.Metrics().Handler()
	}
	server := api.NewServer(container.Config.HTTP, handlers.NewHandlerSet(deps))

	lg := container.Logger
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("http server listening", zap.Int("port", container.Config.HTTP.Port))
		return server.Start(gctx)
	})
	g.Go(func() error {
		return container.Publisher().Run(gctx, 5*time.Second)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), container.Config.Dialer.PersistTimeout)
		defer stopCancel()
		if _, err := container.Session().Stop(stopCtx); err != nil {
			lg.Error("failed to persist run on shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		lg.Error("dialer terminated", zap.Error(err))
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
