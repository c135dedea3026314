package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/aditi5926/expense-tracker/internal/amqp"
	"github.com/aditi5926/expense-tracker/internal/cache"
	"github.com/aditi5926/expense-tracker/internal/classifier"
	"github.com/aditi5926/expense-tracker/internal/config"
	apphttp "github.com/aditi5926/expense-tracker/internal/http"
	"github.com/aditi5926/expense-tracker/internal/ledger"
	applog "github.com/aditi5926/expense-tracker/internal/log"
	"github.com/aditi5926/expense-tracker/internal/storage"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Remote classification is optional; without a key the classifier runs
	// keyword-only.
	var remote classifier.Remote
	if cfg.GeminiAPIKey != "" {
		gemini, err := classifier.NewGeminiRemote(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Failed to initialize Gemini client, using keyword fallback only", "error", err)
		} else {
			remote = gemini
			logger.Info("Gemini classification enabled", "model", cfg.GeminiModel)
		}
	} else {
		logger.Info("Gemini disabled - no GEMINI_API_KEY provided")
	}
	categorizer := classifier.New(remote, cfg.ClassifyTimeout)

	cacheManager := cache.NewManager()
	cacheManager.Register(categorizer.Cache())
	cacheManager.StartCleanup(cfg.CacheCleanupInterval)
	defer cacheManager.Stop()

	// Event publishing is optional as well; the ledger works without a broker.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to connect to AMQP, expense events disabled", "error", err)
			events = nil
		} else {
			defer events.Close()
			logger.Info("AMQP event publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	service := ledger.NewService(repo, categorizer, events)
	srv := apphttp.NewServer(":"+cfg.Port, service, categorizer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting expense-tracker server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}
