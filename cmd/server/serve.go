package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roadcams/conditions-dashboard/internal/history"
	httpapi "github.com/roadcams/conditions-dashboard/internal/http"
	"github.com/roadcams/conditions-dashboard/internal/http/handlers"
	"github.com/roadcams/conditions-dashboard/internal/logging"
	"github.com/roadcams/conditions-dashboard/internal/metrics"
	"github.com/roadcams/conditions-dashboard/internal/poller"
	"github.com/roadcams/conditions-dashboard/internal/proxy"
	"github.com/roadcams/conditions-dashboard/internal/source"
	"github.com/roadcams/conditions-dashboard/internal/storage"
	"github.com/roadcams/conditions-dashboard/internal/upstream"
	"github.com/spf13/cobra"
)

func addServeCmd(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		logger.Error("failed to create db directory", "err", err)
		return err
	}
	repo, err := storage.New(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "err", err)
		return err
	}
	defer repo.Close()

	registry := metrics.New()
	client := upstream.NewClient(cfg.APIURL)
	conditions := proxy.New(client, registry, logger)

	// The adapter reads through the proxy so both share one freshness window.
	adapter := source.NewAdapter(conditions, logger)
	defer adapter.Subscribe(registry.OnState)()

	recorder := history.NewRecorder(repo, cfg.HistoryRetention, logger)
	defer adapter.Subscribe(recorder.OnState)()
	if err := recorder.Start(ctx); err != nil {
		return fmt.Errorf("schedule history retention: %w", err)
	}
	defer recorder.Stop()

	refresher := poller.New(adapter, logger)
	go func() {
		if err := refresher.Run(ctx); err != nil {
			logger.Error("refresh scheduler stopped", "err", err)
		}
	}()

	api := handlers.New(adapter, refresher, repo, logger, cfg.FrontendDist)
	httpServer := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(api, conditions, registry.Handler()))

	logger.Info("server starting", "addr", httpServer.Addr, "api_url", client.BaseURL())
	if err := httpapi.RunServer(ctx, httpServer, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated with error", "err", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}
