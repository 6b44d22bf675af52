// Command api is the Predictor Live server: it polls the match feed,
// classifies score transitions into notification events, and fans them out
// to push endpoints.
//
// Usage:
//
//	predictor-live-api
//	API_PORT=8080 predictor-live-api

// @title Predictor Live API
// @version 1.0.0
// @description Live match event detection and push notification fan-out: change-capture hooks, subscription registration, health, and metrics.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/scorepredictor/live-data/internal/api"
	"github.com/scorepredictor/live-data/internal/api/handler"
	"github.com/scorepredictor/live-data/internal/config"
	"github.com/scorepredictor/live-data/internal/db"
	"github.com/scorepredictor/live-data/internal/event"
	"github.com/scorepredictor/live-data/internal/ledger"
	"github.com/scorepredictor/live-data/internal/listener"
	"github.com/scorepredictor/live-data/internal/maintenance"
	"github.com/scorepredictor/live-data/internal/metrics"
	"github.com/scorepredictor/live-data/internal/notify"
	"github.com/scorepredictor/live-data/internal/provider/matchfeed"
	"github.com/scorepredictor/live-data/internal/push"
	"github.com/scorepredictor/live-data/internal/recipient"
	"github.com/scorepredictor/live-data/internal/score"
	"github.com/scorepredictor/live-data/internal/subscription"

	_ "github.com/scorepredictor/live-data/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	metrics.Init()

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database and apply migrations
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Migrate(logger); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Wire the pipeline
	scores := score.NewStore(pool.Pool)
	markers := ledger.New(pool.Pool)
	classifier := event.NewClassifier(markers, logger)
	picks := recipient.NewPickStore(pool.Pool)
	exclusions := recipient.NewExclusionStore(pool.Pool)
	resolver := recipient.NewResolver(picks, exclusions, logger)
	subs := subscription.NewStore(pool.Pool)
	prefs := subscription.NewPreferenceStore(pool.Pool)
	transport := push.NewClient(cfg.PushServiceURL, cfg.PushServiceAPIKey, logger)
	validator := subscription.NewValidator(subs, prefs, transport, logger)
	dispatcher := notify.NewDispatcher(markers, resolver, validator, transport, subs,
		cfg.DispatchWorkers, cfg.SendTimeout, logger)
	pipeline := notify.NewPipeline(classifier, scores, dispatcher, logger)

	// Start the score poller
	feed := matchfeed.NewClient(cfg.MatchFeedBaseURL, cfg.MatchFeedAPIKey, cfg.MatchFeedRPM, logger)
	poller := score.NewPoller(scores, feed, pipeline.Handle, cfg.PollInterval, cfg.PollFetchGap, logger)
	go poller.Start(ctx)

	// Start LISTEN/NOTIFY consumer for out-of-band score writes
	go listener.Start(ctx, cfg.DatabaseURL, scores, pipeline.Handle, logger)

	// Start maintenance tickers (revalidation, gameweek sweeps)
	go maintenance.Start(ctx, pool.Pool, maintenance.Config{
		RevalidateInterval: cfg.RevalidateInterval,
		GameweekInterval:   cfg.GameweekSweepInterval,
	}, validator, picks, dispatcher, logger)

	// Create router and HTTP server
	h := handler.New(pool, cfg, scores, pipeline, dispatcher, subs, transport)
	router := api.NewRouter(h, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Predictor Live API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
