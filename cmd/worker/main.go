/**
 * PageTranslate Worker - Main Entry Point
 *
 * Go worker that translates comic and manga pages in place.
 *
 * Architecture:
 * - Redis list or Asynq consumer for the page job queue
 * - Pipeline: detect -> group -> translate -> erase -> render -> publish
 * - Tesseract text-line detection, OpenAI-compatible translation
 * - PostgreSQL persistence for page status and regions
 * - Rendered pages go to the artifact API or a local output directory
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/pagetranslate-worker/internal/app"
	"github.com/adverant/nexus/pagetranslate-worker/internal/clients"
	"github.com/adverant/nexus/pagetranslate-worker/internal/config"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/processor"
	"github.com/adverant/nexus/pagetranslate-worker/internal/queue"
	"github.com/adverant/nexus/pagetranslate-worker/internal/storage"
)

// consumer is the part of both queue backends the worker drives.
type consumer interface {
	Start() error
	Stop() error
}

// asynqConsumer adapts the context-taking asynq consumer.
type asynqConsumer struct{ *queue.Consumer }

func (c asynqConsumer) Start() error { return c.Consumer.Start(context.Background()) }
func (c asynqConsumer) Stop() error  { return c.Consumer.Stop(context.Background()) }

func main() {
	logger := logging.NewLogger("Worker")

	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		logger.Warn(".env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		logger.Warn("Invalid logging configuration, keeping defaults", "error", err)
	}

	logger.Info("PageTranslate Worker starting...",
		"queueBackend", cfg.QueueBackend, "queue", cfg.QueueName,
		"workers", cfg.WorkerConcurrency, "model", cfg.TranslatorModel)

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize publisher", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	storageManager, err := storage.NewPostgresStorageManager(ctx, cfg.DatabaseURL, publisher)
	cancel()
	if err != nil {
		logger.Error("Failed to initialize storage manager", "error", err)
		os.Exit(1)
	}
	defer storageManager.Close()
	logger.Info("Storage manager initialized (PostgreSQL)")

	pipeline, err := app.Build(cfg, storageManager, storageManager, true)
	if err != nil {
		logger.Error("Failed to initialize page processor", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()
	logger.Info("Page processor initialized")

	qc, err := newConsumer(cfg, pipeline.Processor)
	if err != nil {
		logger.Error("Failed to initialize queue consumer", "error", err)
		os.Exit(1)
	}
	if err := qc.Start(); err != nil {
		logger.Error("Failed to start queue consumer", "error", err)
		os.Exit(1)
	}
	logger.Info("PageTranslate Worker is READY, waiting for jobs...")

	// Setup graceful shutdown
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	logger.Info("Shutdown signal received, stopping...")

	if err := qc.Stop(); err != nil {
		logger.Warn("Error stopping queue consumer", "error", err)
	} else {
		logger.Info("Queue consumer stopped successfully")
	}

	logger.Info("Shutdown complete", "storage", storageManager.GetStats(context.Background()))
}

// newPublisher picks the artifact API when configured, else the local
// output directory.
func newPublisher(cfg *config.Config, logger *logging.Logger) (processor.Publisher, error) {
	if cfg.ArtifactAPIURL != "" {
		client := clients.NewArtifactClient(cfg.ArtifactAPIURL)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.HealthCheck(ctx); err != nil {
			logger.Warn("Artifact API health check failed, uploads may fail", "url", cfg.ArtifactAPIURL, "error", err)
		}
		logger.Info("Publishing rendered pages to artifact API", "url", cfg.ArtifactAPIURL)
		return client, nil
	}
	fs, err := storage.NewFileStore(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	logger.Info("Publishing rendered pages to local directory", "dir", cfg.OutputDir)
	return fs, nil
}

func newConsumer(cfg *config.Config, proc processor.PageProcessorInterface) (consumer, error) {
	switch cfg.QueueBackend {
	case "asynq":
		c, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			return nil, err
		}
		return asynqConsumer{c}, nil
	case "redis":
		return queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
	}
	return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
}
