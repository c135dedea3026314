package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/aditi5926/expense-tracker/internal/amqp"
	"github.com/aditi5926/expense-tracker/internal/config"
	applog "github.com/aditi5926/expense-tracker/internal/log"
	"github.com/aditi5926/expense-tracker/internal/storage"
	"github.com/aditi5926/expense-tracker/internal/worker"
)

const dialAttempts = 10

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting summary-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the summary worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The worker often starts before the broker accepts connections.
	client, err := amqp.DialWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, dialAttempts)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err, "url", cfg.AMQPURL)
		os.Exit(1)
	}
	defer client.Close()

	summaryWorker := worker.NewSummaryWorker(repo)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeExpenseEvents(ctx, func(msg *amqp.ExpenseEventMessage) error {
			return summaryWorker.HandleExpenseEvent(ctx, msg)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
