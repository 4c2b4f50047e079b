// Package main runs the mangonaut server: it receives Sentry issue
// alerts, analyzes the failing code with an LLM, and opens fix pull
// requests through a GitHub App installation.
//
// Usage:
//
//	MANGONAUT_SENTRY__TOKEN=sntrys_xxx \
//	MANGONAUT_GITHUB__APP_ID=12345 \
//	MANGONAUT_GITHUB__INSTALLATION_ID=67890 \
//	MANGONAUT_GITHUB__PRIVATE_KEY=base64pem \
//	MANGONAUT_LLM__API_KEY=sk-ant-xxx \
//	./mangonaut -config config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/config"
	"github.com/Sujin1135/mangonaut/internal/dispatch"
	"github.com/Sujin1135/mangonaut/internal/githubapp"
	"github.com/Sujin1135/mangonaut/internal/llm"
	"github.com/Sujin1135/mangonaut/internal/logging"
	"github.com/Sujin1135/mangonaut/internal/mapping"
	"github.com/Sujin1135/mangonaut/internal/pipeline"
	scmgithub "github.com/Sujin1135/mangonaut/internal/scm/github"
	"github.com/Sujin1135/mangonaut/internal/sentry"
	"github.com/Sujin1135/mangonaut/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("MANGONAUT_CONFIG"), "path to the YAML configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("mangonaut starting",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("projects", len(cfg.Projects)))

	// GitHub App credentials and the installed-repositories cache.
	tokens := githubapp.NewTokenProvider(cfg.GitHub, logger)
	repoCache := githubapp.NewRepositoryCache(tokens, cfg.GitHub.BaseURL, config.RepoCacheTTL, logger)
	go repoCache.Run(ctx)

	// Providers.
	sentryClient := sentry.NewClient(cfg.Sentry, logger)
	scmClient, err := scmgithub.NewClient(tokens.TokenSource(ctx), cfg.GitHub.BaseURL, logger)
	if err != nil {
		return fmt.Errorf("creating github client: %w", err)
	}
	llmClient, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	// Pipeline.
	metrics, err := pipeline.NewMetrics(nil)
	if err != nil {
		return fmt.Errorf("creating pipeline metrics: %w", err)
	}
	processor := pipeline.NewProcessor(
		sentryClient,
		pipeline.NewAnalyzer(scmClient, llmClient, logger),
		pipeline.NewPRGate(scmClient, logger),
		logger,
		metrics,
	)

	resolver := mapping.NewResolver(cfg.Projects, repoCache, logger)
	pool := dispatch.NewPool(cfg.Dispatch, logger)

	// HTTP boundary.
	webhook, err := server.NewWebhookHandler(cfg.Sentry, cfg.Behavior, resolver, processor, pool, logger)
	if err != nil {
		return fmt.Errorf("creating webhook handler: %w", err)
	}
	health := server.NewHealthHandler(sentryClient, scmClient, llmClient, logger)

	srv, err := server.New(cfg.Server, webhook, health, logger)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dispatch pool did not drain", zap.Error(err))
	}
	return nil
}
